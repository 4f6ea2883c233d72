package reconcile

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/lilymagnc/lilysync/internal/docstore"
)

var foldCaser = cases.Fold()

// normalizeName canonicalizes a counterparty name for fingerprinting. Korean
// names come through Firestore in mixed Unicode composition depending on the
// input method, so NFC first, then case folding for the roman ones.
func normalizeName(name string) string {
	return foldCaser.String(norm.NFC.String(strings.TrimSpace(name)))
}

// orderFingerprint derives the duplicate-grouping key for an order: branch,
// order date truncated to day, integer total, normalized orderer name. Two
// orders sharing a fingerprint are evidence of duplication, never proof; the
// groups are reported for human review only.
func orderFingerprint(doc docstore.Document) string {
	branch := normalizeName(doc.StringField("branch"))
	day := doc.TimeField("orderDate").UTC().Format("2006-01-02")
	total := int64(doc.NumberField("total"))

	orderer := doc.NestedString("orderer", "name")
	if orderer == "" {
		orderer = doc.StringField("orderer")
	}

	return fmt.Sprintf("%s|%s|%d|%s", branch, day, total, normalizeName(orderer))
}
