package address

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupcart/internal/model"
	"groupcart/internal/repository"
	"groupcart/pkg/utils"
)

type fakePersister struct {
	names []string
	last  interface{}
}

func (p *fakePersister) Persist(name string, v interface{}) {
	p.names = append(p.names, name)
	p.last = v
}

func validAddress() model.Address {
	return model.Address{
		Name:       " Asha Rao ",
		Phone:      "+91 98765 43210",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		PostalCode: "560001",
		Country:    "IN",
	}
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	p := &fakePersister{}
	svc := NewAddressService(p)

	assert.Nil(t, svc.Get(ctx, "festive-123"))

	saved, err := svc.Set(ctx, "festive-123", validAddress())
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", saved.Name)

	got := svc.Get(ctx, "festive-123")
	require.NotNil(t, got)
	assert.Equal(t, "12 MG Road", got.Line1)

	require.Equal(t, []string{repository.SnapshotAddresses}, p.names)
	book, ok := p.last.(map[string]model.Address)
	require.True(t, ok)
	assert.Contains(t, book, "festive-123")
}

func TestSetReplaces(t *testing.T) {
	ctx := context.Background()
	svc := NewAddressService(nil)

	_, err := svc.Set(ctx, "r", validAddress())
	require.NoError(t, err)

	next := validAddress()
	next.City = "Mysuru"
	_, err = svc.Set(ctx, "r", next)
	require.NoError(t, err)

	assert.Equal(t, "Mysuru", svc.Get(ctx, "r").City)
}

func TestSetValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*model.Address)
	}{
		{"MissingName", func(a *model.Address) { a.Name = "  " }},
		{"MissingLine1", func(a *model.Address) { a.Line1 = "" }},
		{"MissingCity", func(a *model.Address) { a.City = "" }},
		{"BadPhone", func(a *model.Address) { a.Phone = "call me" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAddressService(nil)
			addr := validAddress()
			tt.mutate(&addr)

			_, err := svc.Set(ctx, "r", addr)
			assert.ErrorIs(t, err, utils.ErrValidation)
			assert.Nil(t, svc.Get(ctx, "r"))
		})
	}

	_, err := NewAddressService(nil).Set(ctx, "", validAddress())
	assert.ErrorIs(t, err, utils.ErrValidation)
}

func TestOptionalFields(t *testing.T) {
	svc := NewAddressService(nil)
	_, err := svc.Set(context.Background(), "r", model.Address{Name: "A", Line1: "B", City: "C"})
	assert.NoError(t, err)
}

func TestRestore(t *testing.T) {
	svc := NewAddressService(nil)
	svc.Restore(map[string]model.Address{"r": {Name: "A", Line1: "B", City: "C"}})

	got := svc.Get(context.Background(), "r")
	require.NotNil(t, got)
	assert.Equal(t, "C", got.City)
}
