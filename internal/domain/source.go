package domain

// Source identifies an external data provider feeding the pipeline.
type Source string

const (
	SourceCoinPaprika Source = "coinpaprika"
	SourceCoinGecko   Source = "coingecko"
	SourceCSV         Source = "csv"
)

// String returns the string representation of Source.
func (s Source) String() string {
	return string(s)
}

// IsValid checks if the source is a known value.
func (s Source) IsValid() bool {
	switch s {
	case SourceCoinPaprika, SourceCoinGecko, SourceCSV:
		return true
	}
	return false
}

// AllSources lists every known source in stable order.
func AllSources() []Source {
	return []Source{SourceCoinPaprika, SourceCoinGecko, SourceCSV}
}
