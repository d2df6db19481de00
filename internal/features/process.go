package features

import (
	"fmt"

	"github.com/Isaadqurashi/mlops-project/internal/model"
)

// Process loads a raw CSV, builds its feature table and, when outputPath is
// not empty, persists the table there.
func (b *Builder) Process(rawPath, outputPath string) (*model.FeatureTable, error) {
	bars, err := ReadBarsFile(rawPath)
	if err != nil {
		return nil, fmt.Errorf("load raw data: %w", err)
	}

	symbol := SymbolFromPath(rawPath)
	table, err := b.Build(symbol, bars)
	if err != nil {
		return nil, err
	}

	if outputPath != "" {
		if err := WriteTableFile(outputPath, table); err != nil {
			return nil, fmt.Errorf("save processed data: %w", err)
		}
		b.log.Info().Str("symbol", symbol).Str("path", outputPath).Int("rows", table.Len()).Msg("processed data saved")
	}
	return table, nil
}
