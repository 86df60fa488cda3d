package table

import "strings"

// cursorSep joins the sort value and primary sort key inside a continuation
// token. Key material is printable, so a control byte never collides.
const cursorSep = "\x1f"

// encodeCursor builds a continuation token from the last record seen.
func encodeCursor(sortValue, sk string) string {
	return sortValue + cursorSep + sk
}

// decodeCursor splits a continuation token back into (sortValue, sk).
// An empty token means "start from the beginning".
func decodeCursor(cursor string) (sortValue, sk string, ok bool) {
	if cursor == "" {
		return "", "", false
	}
	i := strings.LastIndex(cursor, cursorSep)
	if i < 0 {
		return cursor, cursor, true
	}
	return cursor[:i], cursor[i+1:], true
}

// sortValueFor returns the value a record sorts by under the given index.
func sortValueFor(idx Index, rec Record) string {
	switch idx {
	case IndexGSI1:
		return rec.GSI1SK
	case IndexGSI3:
		return rec.GSI3SK
	default:
		// Base table and GSI2 iterate in primary sort-key order.
		return rec.SK
	}
}

// partitionValueFor returns the record field the index partitions by.
func partitionValueFor(idx Index, rec Record) string {
	switch idx {
	case IndexGSI1:
		return rec.GSI1PK
	case IndexGSI2:
		return rec.GSI2PK
	case IndexGSI3:
		return rec.GSI3PK
	default:
		return rec.PK
	}
}

// prefixUpperBound returns the smallest string greater than every string
// with the given prefix, for index-friendly range scans. Our key prefixes
// end in printable ASCII, so incrementing the final byte is always valid.
func prefixUpperBound(prefix string) string {
	b := []byte(prefix)
	b[len(b)-1]++
	return string(b)
}
