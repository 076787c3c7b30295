package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVectorIndexSQLUsesConfiguredListCount(t *testing.T) {
	assert.Contains(t, vectorIndexSQL(200), "WITH (lists = 200)")
	assert.Contains(t, vectorIndexSQL(0), "WITH (lists = 100)", "non-positive falls back to the default")
	assert.Contains(t, vectorIndexSQL(100), "vector_cosine_ops")
}
