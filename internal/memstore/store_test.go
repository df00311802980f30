package memstore

import (
	"testing"

	"github.com/ariefcatur/card-market/internal/store"
	"github.com/ariefcatur/card-market/internal/store/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}
