package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/unicode/norm"

	"github.com/lilymagnc/lilysync/internal/docstore"
)

func fpDoc(branch string, day time.Time, total float64, orderer string) docstore.Document {
	return docstore.Document{
		ID: "X",
		Fields: map[string]docstore.Value{
			"branch":    docstore.Scalar{V: branch},
			"orderDate": docstore.Timestamp{T: day},
			"total":     docstore.Scalar{V: total},
			"orderer":   docstore.Nested{"name": docstore.Scalar{V: orderer}},
		},
	}
}

func TestOrderFingerprint_TruncatesToDay(t *testing.T) {
	morning := fpDoc("Gangnam", time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), 50000, "Kim")
	evening := fpDoc("Gangnam", time.Date(2025, 6, 10, 21, 30, 0, 0, time.UTC), 50000, "Kim")
	nextDay := fpDoc("Gangnam", time.Date(2025, 6, 11, 9, 0, 0, 0, time.UTC), 50000, "Kim")

	assert.Equal(t, orderFingerprint(morning), orderFingerprint(evening))
	assert.NotEqual(t, orderFingerprint(morning), orderFingerprint(nextDay))
}

func TestOrderFingerprint_NormalizesNames(t *testing.T) {
	day := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	// Same Korean name in decomposed and composed form.
	nfd := fpDoc("Gangnam", day, 50000, norm.NFD.String("강하나"))
	nfc := fpDoc("Gangnam", day, 50000, "강하나")
	assert.Equal(t, orderFingerprint(nfc), orderFingerprint(nfd))

	upper := fpDoc("Gangnam", day, 50000, "KIM ")
	lower := fpDoc("Gangnam", day, 50000, "kim")
	assert.Equal(t, orderFingerprint(lower), orderFingerprint(upper))
}

func TestOrderFingerprint_Discriminators(t *testing.T) {
	day := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	base := fpDoc("Gangnam", day, 50000, "Kim")

	assert.NotEqual(t, orderFingerprint(base), orderFingerprint(fpDoc("Hongdae", day, 50000, "Kim")))
	assert.NotEqual(t, orderFingerprint(base), orderFingerprint(fpDoc("Gangnam", day, 49000, "Kim")))
	assert.NotEqual(t, orderFingerprint(base), orderFingerprint(fpDoc("Gangnam", day, 50000, "Park")))
}

func TestOrderFingerprint_FlatOrdererFallback(t *testing.T) {
	day := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	flat := docstore.Document{
		ID: "X",
		Fields: map[string]docstore.Value{
			"branch":    docstore.Scalar{V: "Gangnam"},
			"orderDate": docstore.Timestamp{T: day},
			"total":     docstore.Scalar{V: float64(50000)},
			"orderer":   docstore.Scalar{V: "Kim"},
		},
	}
	nested := fpDoc("Gangnam", day, 50000, "Kim")
	assert.Equal(t, orderFingerprint(nested), orderFingerprint(flat))
}
