package bank

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDocumentDeterminism(t *testing.T) {
	doc := Object{
		"name":    String("core"),
		"version": String("1.0.0"),
	}

	// Same inputs must produce same hash
	h1, err := HashDocument(doc)
	require.NoError(t, err)

	h2, err := HashDocument(doc)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "HashDocument must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestHashDocumentChangesWithContent(t *testing.T) {
	doc1 := Object{"name": String("core"), "version": String("1.0.0")}
	doc2 := Object{"name": String("core"), "version": String("1.0.1")}

	h1 := MustHashDocument(doc1)
	h2 := MustHashDocument(doc2)

	assert.NotEqual(t, h1, h2, "Different content must produce different hashes")
}

func TestHashDocumentKeyOrdering(t *testing.T) {
	// Insertion order must not matter: canonical marshaling sorts keys
	doc1 := Object{
		"zebra": Int(1),
		"alpha": Int(2),
	}
	doc2 := Object{
		"alpha": Int(2),
		"zebra": Int(1),
	}

	assert.Equal(t, MustHashDocument(doc1), MustHashDocument(doc2),
		"Key ordering must be deterministic regardless of insertion order")
}

func TestHashSnapshotDeterminism(t *testing.T) {
	doc := Object{
		"session_id": String("sess-1"),
		"verdict":    String("C"),
	}

	h1, err := HashSnapshot(doc)
	require.NoError(t, err)

	h2, err := HashSnapshot(doc)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "HashSnapshot must be deterministic")
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
}

func TestDomainSeparationPreventsCrossTypeCollision(t *testing.T) {
	// Same document hashed under different domains must differ
	doc := Object{"id": String("test"), "data": Int(42)}

	bankHash := MustHashDocument(doc)
	snapHash := MustHashSnapshot(doc)

	assert.NotEqual(t, bankHash, snapHash, "Different domains must produce different hashes")
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// Verify null separator prevents boundary confusion
	// "foo" + 0x00 + "bar" != "foob" + 0x00 + "ar"
	hash1 := hashWithDomain("foo", []byte("bar"))
	hash2 := hashWithDomain("foob", []byte("ar"))

	assert.NotEqual(t, hash1, hash2, "Null separator must prevent boundary confusion")
}

func TestStreamSeedDeterminism(t *testing.T) {
	k1 := StreamSeed("seed-1", "bankhash", "default")
	k2 := StreamSeed("seed-1", "bankhash", "default")

	assert.Equal(t, k1, k2, "StreamSeed must be deterministic")
}

func TestStreamSeedChangesWithAnyInput(t *testing.T) {
	base := StreamSeed("seed-1", "bankhash", "default")

	assert.NotEqual(t, base, StreamSeed("seed-2", "bankhash", "default"),
		"Different session seeds should produce different keys")
	assert.NotEqual(t, base, StreamSeed("seed-1", "otherhash", "default"),
		"Different bank hashes should produce different keys")
	assert.NotEqual(t, base, StreamSeed("seed-1", "bankhash", "strict"),
		"Different profiles should produce different keys")
}

func TestStreamSeedBoundaries(t *testing.T) {
	// Null separators keep field boundaries unambiguous
	k1 := StreamSeed("ab", "c", "d")
	k2 := StreamSeed("a", "bc", "d")

	assert.NotEqual(t, k1, k2, "Field boundaries must be unambiguous")
}

func TestDomainConstants(t *testing.T) {
	assert.Equal(t, "facet/bank/v1", DomainBank)
	assert.Equal(t, "facet/snapshot/v1", DomainSnapshot)
	assert.Equal(t, "facet/rng/v1", DomainStream)
}

func TestHashNestedDocument(t *testing.T) {
	doc := Object{
		"nested": Object{
			"deep": Array{
				Int(1),
				String("two"),
				Object{"value": Bool(true)},
			},
		},
		"simple": String("test"),
	}

	h1 := MustHashDocument(doc)
	h2 := MustHashDocument(doc)

	assert.Equal(t, h1, h2, "Nested documents must hash deterministically")
}

func TestMustFunctionsPanic(t *testing.T) {
	// The Must* functions should not panic with valid input
	assert.NotPanics(t, func() {
		MustHashDocument(Object{})
	})
	assert.NotPanics(t, func() {
		MustHashSnapshot(Object{})
	})
}

func TestHashHexEncoding(t *testing.T) {
	// Output is lowercase hex only
	h := MustHashDocument(Object{"k": String("v")})

	for _, c := range h {
		valid := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		assert.True(t, valid, "Hash should only contain hex characters, got: %c", c)
	}
}
