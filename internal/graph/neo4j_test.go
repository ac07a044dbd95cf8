package graph

import (
	"errors"
	"testing"

	"github.com/firmlens/firmlens/internal/config"
)

func TestNewNeo4jStoreRejectsBadScheme(t *testing.T) {
	_, err := NewNeo4jStore(config.StoreConfig{URI: "http://localhost:7474", Username: "neo4j"})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("got %v, want ErrUnavailable", err)
	}
}
