package excel

// FileConfig maps a spreadsheet or CSV layout onto a series frame.
type FileConfig struct {
	Path string `yaml:"path" json:"path"`
	// Sheet is the worksheet read from .xlsx files.
	Sheet         string   `yaml:"sheet" json:"sheet" default:"Sheet1"`
	EntityColumns []string `yaml:"entity_columns" json:"entity_columns"`
	DateColumn    string   `yaml:"date_column" json:"date_column" default:"date"`
	// ValueColumns defaults to every column that is neither an entity nor the date column.
	ValueColumns []string `yaml:"value_columns,omitempty" json:"value_columns,omitempty"`
}

// DefaultFileConfig returns the store/sku/date layout written by the CLI.
func DefaultFileConfig(path string) FileConfig {
	return FileConfig{
		Path:          path,
		Sheet:         "Sheet1",
		EntityColumns: []string{"store_id", "sku"},
		DateColumn:    "date",
	}
}
