package db

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"tabletrace/internal/models"
)

const (
	dateTimeLayout = "2006-01-02 15:04:05"
	dateLayout     = "2006-01-02"
)

// FormatValue renders a scanned column value for display. dbType is the
// driver's DatabaseTypeName for the column and may be empty.
func FormatValue(v any, dbType string) string {
	dbType = strings.ToUpper(dbType)

	switch val := v.(type) {
	case nil:
		return models.NullValue
	case time.Time:
		if dbType == "DATE" {
			return val.Format(dateLayout)
		}
		return val.Format(dateTimeLayout)
	case []byte:
		return formatBytes(val, dbType)
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int:
		return strconv.Itoa(val)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return fmt.Sprintf("%.2f", val)
	case float32:
		return fmt.Sprintf("%.2f", val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return models.UnknownValue
	}
}

func formatBytes(b []byte, dbType string) string {
	switch {
	case isFloatType(dbType):
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return models.UnknownValue
		}
		return fmt.Sprintf("%.2f", f)
	case isBinaryType(dbType):
		return models.UnknownValue
	case !utf8.Valid(b):
		return models.UnknownValue
	}
	// UUID, JSON, NUMERIC/DECIMAL and MySQL text-protocol values arrive as raw text.
	return string(b)
}

func isFloatType(dbType string) bool {
	switch dbType {
	case "FLOAT4", "FLOAT8", "FLOAT", "DOUBLE", "REAL":
		return true
	}
	return false
}

func isBinaryType(dbType string) bool {
	switch dbType {
	case "BYTEA", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY":
		return true
	}
	return false
}
