package resolver

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areluna/finimport/internal/entity"
)

type fakeDirectory struct {
	clients   []Ref
	contracts []Ref
}

func (f *fakeDirectory) ClientRefs(context.Context) ([]Ref, error)   { return f.clients, nil }
func (f *fakeDirectory) ContractRefs(context.Context) ([]Ref, error) { return f.contracts, nil }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestResolve_ExternalIDWinsOverName(t *testing.T) {
	dir := &fakeDirectory{clients: []Ref{
		{ID: 10, ExternalID: "CLI_a1", NameKey: "ana silva"},
		{ID: 11, ExternalID: "CLI_b2", NameKey: "rui costa"},
	}}
	ix, err := BuildClientIndex(context.Background(), dir, quietLogger())
	require.NoError(t, err)
	ix.AllowNameMatch = true

	id, outcome := ix.Resolve(entity.LinkRef{ExternalID: "CLI_a1", Name: "Rui Costa"})
	assert.Equal(t, ResolvedByExternalID, outcome)
	assert.Equal(t, int64(10), id)
}

func TestResolve_RawSourceIDStoredVerbatim(t *testing.T) {
	// legacy rows where the destination kept the source id as external_id
	dir := &fakeDirectory{clients: []Ref{{ID: 7, ExternalID: "a1"}}}
	ix, err := BuildClientIndex(context.Background(), dir, quietLogger())
	require.NoError(t, err)

	id, outcome := ix.Resolve(entity.LinkRef{ExternalID: "CLI_a1", SourceID: "a1"})
	assert.Equal(t, ResolvedBySourceID, outcome)
	assert.Equal(t, int64(7), id)
}

func TestResolve_NameMatchOnlyWhenEnabled(t *testing.T) {
	dir := &fakeDirectory{clients: []Ref{{ID: 3, ExternalID: "CLI_x", NameKey: "ana silva"}}}
	ix, err := BuildClientIndex(context.Background(), dir, quietLogger())
	require.NoError(t, err)

	ref := entity.LinkRef{Name: " Ana  Silva "}

	_, outcome := ix.Resolve(ref)
	assert.Equal(t, Unresolved, outcome)

	ix.AllowNameMatch = true
	id, outcome := ix.Resolve(ref)
	assert.Equal(t, ResolvedByName, outcome)
	assert.Equal(t, int64(3), id)
	assert.True(t, outcome.Resolved())
}

func TestResolve_AmbiguousNameNeverGuesses(t *testing.T) {
	dir := &fakeDirectory{clients: []Ref{
		{ID: 1, ExternalID: "CLI_a", NameKey: "ana silva"},
		{ID: 2, ExternalID: "CLI_b", NameKey: "ana silva"},
	}}
	ix, err := BuildClientIndex(context.Background(), dir, quietLogger())
	require.NoError(t, err)
	ix.AllowNameMatch = true

	_, outcome := ix.Resolve(entity.LinkRef{Name: "Ana Silva"})
	assert.Equal(t, AmbiguousName, outcome)
	assert.False(t, outcome.Resolved())
}

func TestResolve_ContractIndexIgnoresNames(t *testing.T) {
	dir := &fakeDirectory{contracts: []Ref{{ID: 5, ExternalID: "CON_c1"}}}
	ix, err := BuildContractIndex(context.Background(), dir, quietLogger())
	require.NoError(t, err)
	ix.AllowNameMatch = true

	id, outcome := ix.Resolve(entity.LinkRef{ExternalID: "CON_c1"})
	assert.Equal(t, ResolvedByExternalID, outcome)
	assert.Equal(t, int64(5), id)

	_, outcome = ix.Resolve(entity.LinkRef{Name: "whatever"})
	assert.Equal(t, Unresolved, outcome)
}

func TestResolve_Unresolved(t *testing.T) {
	ix, err := BuildClientIndex(context.Background(), &fakeDirectory{}, quietLogger())
	require.NoError(t, err)

	_, outcome := ix.Resolve(entity.LinkRef{ExternalID: "CLI_missing", SourceID: "missing"})
	assert.Equal(t, Unresolved, outcome)
	assert.Equal(t, 0, ix.Len())
}
