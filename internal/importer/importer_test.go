package importer

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/areluna/finimport/internal/entity"
	"github.com/areluna/finimport/internal/resolver"
	"github.com/areluna/finimport/internal/store"
)

// fakeStore keeps upserted rows in memory, keyed the way the real
// destination keys them: by external_id.
type fakeStore struct {
	nextID    int64
	clients   map[string]entity.Client
	clientID  map[string]int64
	contracts map[string]entity.Contract
	contrID   map[string]int64
	payments  map[string]entity.Payment
	payID     map[string]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		clients:   map[string]entity.Client{},
		clientID:  map[string]int64{},
		contracts: map[string]entity.Contract{},
		contrID:   map[string]int64{},
		payments:  map[string]entity.Payment{},
		payID:     map[string]int64{},
	}
}

func (f *fakeStore) ClientRefs(context.Context) ([]resolver.Ref, error) {
	var refs []resolver.Ref
	for key, c := range f.clients {
		refs = append(refs, resolver.Ref{ID: f.clientID[key], ExternalID: key, NameKey: c.NameKey()})
	}
	return refs, nil
}

func (f *fakeStore) ContractRefs(context.Context) ([]resolver.Ref, error) {
	var refs []resolver.Ref
	for key := range f.contracts {
		refs = append(refs, resolver.Ref{ID: f.contrID[key], ExternalID: key})
	}
	return refs, nil
}

func (f *fakeStore) UpsertClients(_ context.Context, clients []entity.Client, _ int) store.BatchResult {
	res := store.BatchResult{Attempted: len(clients), Succeeded: len(clients)}
	for _, c := range clients {
		key := c.Key()
		if _, ok := f.clientID[key]; !ok {
			f.nextID++
			f.clientID[key] = f.nextID
		}
		f.clients[key] = c
	}
	return res
}

func (f *fakeStore) UpsertContracts(_ context.Context, contracts []entity.Contract, _ int) store.BatchResult {
	res := store.BatchResult{Attempted: len(contracts), Succeeded: len(contracts)}
	for _, c := range contracts {
		key := c.Key()
		if _, ok := f.contrID[key]; !ok {
			f.nextID++
			f.contrID[key] = f.nextID
		}
		f.contracts[key] = c
	}
	return res
}

func (f *fakeStore) UpsertPayments(_ context.Context, payments []entity.Payment, _ int) store.BatchResult {
	res := store.BatchResult{Attempted: len(payments), Succeeded: len(payments)}
	for _, p := range payments {
		key := p.Key()
		if _, ok := f.payID[key]; !ok {
			f.nextID++
			f.payID[key] = f.nextID
		}
		f.payments[key] = p
	}
	return res
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

const (
	clientUUID   = "a1b2c3d4-e5f6-7890-abcd-ef1234567890"
	contractUUID = "b2c3d4e5-f6a7-8901-bcde-f12345678901"
	paymentUUID  = "c3d4e5f6-a7b8-9012-cdef-123456789012"
)

func scenarioDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "clients.csv",
		"id,name,email,city\n"+
			clientUUID+",Ana Silva,ana@example.com,Lisboa\n")
	writeFile(t, dir, "contracts.csv",
		"id,client_id,contract_number,value,start_date,status\n"+
			contractUUID+","+clientUUID+",CT-001,\"1.500,00\",01/06/2024,active\n")
	writeFile(t, dir, "payments.csv",
		"id,contract_id,amount,due_date,status\n"+
			paymentUUID+","+contractUUID+",\"1.500,00\",01/07/2024,pending\n")
	return dir
}

func TestRun_FullScenario(t *testing.T) {
	log := quietLogger()
	st := newFakeStore()
	dir := scenarioDir(t)

	summary, err := New(st, Options{}, log).Run(context.Background(), NewDirSet(dir, log))
	require.NoError(t, err)
	require.Len(t, summary.Passes, 3)
	assert.True(t, summary.Clean())

	client, ok := st.clients["CLI_"+clientUUID]
	require.True(t, ok, "client stored under derived key")
	assert.Equal(t, "Ana", client.FirstName)
	assert.Equal(t, "Silva", client.LastName)
	require.NotNil(t, client.Email)
	assert.Equal(t, "ana@example.com", *client.Email)
	assert.Equal(t, "Portugal", client.Country)

	contract, ok := st.contracts["CON_"+contractUUID]
	require.True(t, ok)
	assert.Equal(t, st.clientID["CLI_"+clientUUID], contract.ClientID)
	assert.True(t, contract.TotalAmount.Equal(decimal.RequireFromString("1500.00")),
		"got %s", contract.TotalAmount)
	require.NotNil(t, contract.StartDate)
	assert.Equal(t, "2024-06-01", *contract.StartDate)

	payment, ok := st.payments["PAY_"+paymentUUID]
	require.True(t, ok)
	assert.Equal(t, st.contrID["CON_"+contractUUID], payment.ContractID)
	assert.Equal(t, "pending", payment.Status)
}

func TestRun_Idempotent(t *testing.T) {
	log := quietLogger()
	st := newFakeStore()
	dir := scenarioDir(t)
	set := NewDirSet(dir, log)

	first, err := New(st, Options{}, log).Run(context.Background(), set)
	require.NoError(t, err)
	second, err := New(st, Options{}, log).Run(context.Background(), set)
	require.NoError(t, err)

	assert.Equal(t, first.Passes, second.Passes)
	assert.Len(t, st.clients, 1)
	assert.Len(t, st.contracts, 1)
	assert.Len(t, st.payments, 1)
}

// rejectingStore refuses every payment row; the run must still finish
// without error and carry the failures in the summary.
type rejectingStore struct {
	*fakeStore
}

func (r *rejectingStore) UpsertPayments(_ context.Context, payments []entity.Payment, _ int) store.BatchResult {
	res := store.BatchResult{Attempted: len(payments), Failed: len(payments)}
	for i, p := range payments {
		res.Errors = append(res.Errors, store.RowError{Index: i, Key: p.Key(), Message: "constraint violation"})
	}
	return res
}

func TestRun_RowWriteFailuresAreNotFatal(t *testing.T) {
	log := quietLogger()
	st := &rejectingStore{fakeStore: newFakeStore()}
	dir := scenarioDir(t)

	summary, err := New(st, Options{}, log).Run(context.Background(), NewDirSet(dir, log))
	require.NoError(t, err)
	require.Len(t, summary.Passes, 3)

	payments := summary.Passes[2]
	assert.Equal(t, 1, payments.Failed)
	assert.Equal(t, 0, payments.Succeeded)
	require.Len(t, payments.Errors, 1)
	assert.Contains(t, payments.Errors[0].Message, "constraint violation")
	assert.False(t, summary.Clean())
}

func TestRun_UnresolvedRowsAreSkippedNotWritten(t *testing.T) {
	log := quietLogger()
	st := newFakeStore()
	dir := t.TempDir()
	writeFile(t, dir, "payments.csv",
		"id,contract_id,amount\n"+
			paymentUUID+",missing-contract,\"100,00\"\n")

	summary, err := New(st, Options{}, log).Run(context.Background(), NewDirSet(dir, log))
	require.NoError(t, err)
	require.Len(t, summary.Passes, 1)
	assert.Equal(t, 1, summary.Passes[0].Unresolved)
	assert.False(t, summary.Clean())
	assert.Empty(t, st.payments)
}

func TestRun_NameMatchLinksContract(t *testing.T) {
	log := quietLogger()
	st := newFakeStore()
	st.UpsertClients(context.Background(), []entity.Client{{
		SourceID:   clientUUID,
		FirstName:  "Ana",
		LastName:   "Silva",
		ExternalID: entity.ExternalID(entity.KindClient, clientUUID),
	}}, 0)

	dir := t.TempDir()
	writeFile(t, dir, "contracts.csv",
		"id,name,value\n"+
			contractUUID+",Ana Silva,\"250,00\"\n")

	// disabled by default: the free-text name must not link
	summary, err := New(st, Options{}, log).Run(context.Background(), NewDirSet(dir, log))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Passes[0].Unresolved)

	summary, err = New(st, Options{AllowNameMatch: true}, log).Run(context.Background(), NewDirSet(dir, log))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Passes[0].Unresolved)
	contract := st.contracts["CON_"+contractUUID]
	assert.Equal(t, st.clientID["CLI_"+clientUUID], contract.ClientID)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	log := quietLogger()
	st := newFakeStore()
	dir := scenarioDir(t)

	summary, err := New(st, Options{DryRun: true}, log).Run(context.Background(), NewDirSet(dir, log))
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Empty(t, st.clients)
	assert.Empty(t, st.contracts)
	assert.Empty(t, st.payments)
	// contracts and payments cannot resolve parents that were never written
	assert.Equal(t, 1, summary.Passes[1].Unresolved)
}

func TestRun_KindFilter(t *testing.T) {
	log := quietLogger()
	st := newFakeStore()
	dir := scenarioDir(t)

	summary, err := New(st, Options{Kinds: []entity.Kind{entity.KindClient}}, log).
		Run(context.Background(), NewDirSet(dir, log))
	require.NoError(t, err)
	require.Len(t, summary.Passes, 1)
	assert.Equal(t, "clients", summary.Passes[0].Entity)
	assert.Len(t, st.clients, 1)
	assert.Empty(t, st.contracts)
}

func TestDirSet_MissingFileSkipsPass(t *testing.T) {
	log := quietLogger()
	set := NewDirSet(t.TempDir(), log)
	_, ok, err := set.Open(entity.KindClient)
	require.NoError(t, err)
	assert.False(t, ok)
}
