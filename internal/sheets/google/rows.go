package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"moneta/internal/core"
)

// Column layout: ID, Date, Amount, Type, Category, Description, CreatedAt.
const lastColumn = "G"

func headerRow() []interface{} {
	return []interface{}{"ID", "Date", "Amount", "Type", "Category", "Description", "CreatedAt"}
}

func transactionRow(t core.Transaction) []interface{} {
	created := ""
	if !t.CreatedAt.IsZero() {
		created = t.CreatedAt.UTC().Format(time.RFC3339)
	}
	return []interface{}{
		strconv.FormatInt(t.ID, 10),
		t.Date.String(),
		t.Amount.Fixed(),
		string(t.Type),
		t.CategoryName,
		t.Description,
		created,
	}
}

// findRow scans column A values for id and returns the 1-based sheet row, or
// 0 when absent. The header row never matches.
func findRow(values [][]interface{}, id int64) int {
	want := strconv.FormatInt(id, 10)
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if cellString(row[0]) == want {
			return i + 1
		}
	}
	return 0
}

func cellString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
