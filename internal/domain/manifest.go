package domain

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Manifest — содержимое файла chunk_<id>.manifest.json.
//
// Пример:
//
//	{
//	  "table_data": {
//	    "DiaObject": {"row_count": 120},
//	    "DiaSource": {"row_count": 0}
//	  }
//	}
type Manifest struct {
	TableData map[string]TableData `json:"table_data"`
}

// TableData — сведения о выгруженной таблице.
type TableData struct {
	RowCount int64 `json:"row_count"`
}

// ParseManifest разбирает и валидирует манифест.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(m.TableData) == 0 {
		return nil, ErrEmptyManifest
	}
	return &m, nil
}

// ManifestName возвращает имя файла манифеста для chunk.
func ManifestName(id ChunkID) string {
	return fmt.Sprintf("chunk_%d.manifest.json", id)
}

// NonEmptyTables возвращает имена таблиц с row_count > 0 в алфавитном порядке.
func (m *Manifest) NonEmptyTables() []string {
	tables := make([]string, 0, len(m.TableData))
	for name, td := range m.TableData {
		if td.RowCount == 0 {
			continue
		}
		tables = append(tables, name)
	}
	sort.Strings(tables)
	return tables
}

// ParquetFileName возвращает имя Parquet-файла таблицы.
func ParquetFileName(table string) string {
	return table + ".parquet"
}
