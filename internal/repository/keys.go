package repository

import (
	"net/url"
	"time"
)

// Key layout, one logical table for all entity types:
//
//	Snapshot:   PK ORG#<orgId>    SK BACKUP#<guid>#<tsKey>
//	            GSI1PK ACCT#<orgId>#<accountId>  GSI1SK <tsKey>
//	            GSI2PK SNAP#<snapshotId>
//	            GSI3PK ORGTIME#<orgId>           GSI3SK <tsKey>
//	Credential: PK ORG#<orgId>    SK APIKEY#<credentialId>
//	            GSI2PK APIKEY#<credentialId>
//	Audit:      PK ORG#<orgId>    SK AUDIT#<tsKey>#<auditId>
//
// tsKey is fixed-width UTC down to nanoseconds, so lexicographic order on
// the sort key is chronological order. Dashboard GUIDs are percent-encoded
// before entering a key: they are opaque external identifiers and may
// contain the separator character.
//
// The base table groups an org's snapshots by dashboard GUID, so it answers
// per-dashboard history but not "newest first across the whole org". The
// org/time index (GSI3) keys the same records by capture time alone for
// org-wide listings.
const tsKeyFormat = "20060102T150405.000000000Z"

func timestampKey(t time.Time) string {
	return t.UTC().Format(tsKeyFormat)
}

func keyEscape(s string) string {
	return url.PathEscape(s)
}

func orgPK(orgID string) string {
	return "ORG#" + orgID
}

func snapshotSK(dashboardGUID, tsKey string) string {
	return snapshotPrefix(dashboardGUID) + tsKey
}

func snapshotPrefix(dashboardGUID string) string {
	return "BACKUP#" + keyEscape(dashboardGUID) + "#"
}

// allSnapshotsPrefix matches every snapshot record in an org partition.
const allSnapshotsPrefix = "BACKUP#"

func accountPK(orgID, accountID string) string {
	return "ACCT#" + orgID + "#" + accountID
}

func snapshotIDPK(snapshotID string) string {
	return "SNAP#" + snapshotID
}

func orgTimePK(orgID string) string {
	return "ORGTIME#" + orgID
}

func credentialSK(credentialID string) string {
	return "APIKEY#" + credentialID
}

// credentialPrefix matches every credential record in an org partition.
const credentialPrefix = "APIKEY#"

func auditSK(tsKey, auditID string) string {
	return "AUDIT#" + tsKey + "#" + auditID
}

// auditPrefix matches every audit record in an org partition.
const auditPrefix = "AUDIT#"
