package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"evolution_relay/internal/entities"
	"evolution_relay/internal/infrastructure"
	"evolution_relay/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to TEST_DATABASE_URL and skips when it is unset.
func openTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := infrastructure.NewPostgresClient(ctx, url)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client.Pool
}

func seedTenant(t *testing.T, db *pgxpool.Pool) string {
	t.Helper()
	var id string
	err := db.QueryRow(context.Background(),
		"INSERT INTO tenants (name) VALUES ($1) RETURNING id::text", "test-"+uuid.NewString()).Scan(&id)
	require.NoError(t, err)
	return id
}

func uniquePhone() string {
	return "55" + uuid.New().String()[:8] + "0"
}

func TestContactCreateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	tenantID := seedTenant(t, db)
	repo := repository.NewContactRepository(db)
	phone := uniquePhone()

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := repo.Create(ctx, &entities.Contact{Phone: phone, Name: "Maria", TenantID: tenantID})
			assert.NoError(t, err)
			if c != nil {
				ids[i] = c.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	_, err := repo.GetByPhone(ctx, "000")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestConversationOneOpenPerContact(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	tenantID := seedTenant(t, db)
	contacts := repository.NewContactRepository(db)
	conversations := repository.NewConversationRepository(db)
	messages := repository.NewMessageRepository(db)

	contact, err := contacts.Create(ctx, &entities.Contact{Phone: uniquePhone(), Name: "Maria", TenantID: tenantID})
	require.NoError(t, err)

	_, err = conversations.LatestOpen(ctx, contact.ID)
	require.ErrorIs(t, err, entities.ErrNotFound)

	newConv := func() *entities.Conversation {
		return &entities.Conversation{
			ContactID: contact.ID, TenantID: tenantID,
			Status: entities.StatusActive, Channel: entities.ChannelWhatsApp, Priority: entities.PriorityNormal,
		}
	}

	first, created, err := conversations.Create(ctx, newConv())
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := conversations.Create(ctx, newConv())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	msg, err := messages.Create(ctx, &entities.Message{
		ConversationID: first.ID, Content: "Olá", SenderKind: entities.SenderClient,
		SenderName: "Maria", Kind: entities.KindText, Metadata: map[string]interface{}{"messageId": "W1"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)

	list, err := messages.ListByConversation(ctx, first.ID, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "W1", list[0].Metadata["messageId"])

	require.NoError(t, conversations.SetStatus(ctx, tenantID, first.ID, entities.StatusClosed))
	third, created, err := conversations.Create(ctx, newConv())
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, third.ID)

	latest, err := conversations.LatestOpen(ctx, contact.ID)
	require.NoError(t, err)
	assert.Equal(t, third.ID, latest.ID)
}

func TestInstanceUpdateAndOwner(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	tenantID := seedTenant(t, db)
	repo := repository.NewInstanceRepository(db)
	name := "inst-" + uuid.NewString()[:8]

	_, err := db.Exec(ctx, "INSERT INTO instances (instance_name, tenant_id) VALUES ($1, $2)", name, tenantID)
	require.NoError(t, err)

	owner, err := repo.TenantForInstance(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, tenantID, owner)

	qr := "data:image/png;base64,abc"
	status := entities.InstanceConnecting
	require.NoError(t, repo.ApplyUpdate(ctx, name, entities.InstanceUpdate{Status: &status, QRCode: &qr}))

	inst, err := repo.GetByName(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, qr, inst.QRCode)

	connected := entities.InstanceConnected
	now := time.Now()
	require.NoError(t, repo.ApplyUpdate(ctx, name, entities.InstanceUpdate{Status: &connected, ClearQRCode: true, LastConnectedAt: &now}))

	inst, err = repo.GetByName(ctx, name)
	require.NoError(t, err)
	assert.Empty(t, inst.QRCode)
	assert.Equal(t, entities.InstanceConnected, inst.Status)
	assert.NotNil(t, inst.LastConnectedAt)

	err = repo.ApplyUpdate(ctx, "missing-"+name, entities.InstanceUpdate{Status: &connected})
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func TestInstanceCreateAndDelete(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	tenantID := seedTenant(t, db)
	repo := repository.NewInstanceRepository(db)
	name := "inst-" + uuid.NewString()[:8]

	inst, err := repo.Create(ctx, &entities.Instance{
		Name: name, TenantID: tenantID, IsActive: true,
		Status: entities.InstanceConnecting, ConnectionState: "CONNECTING",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, inst.ID)
	assert.Equal(t, tenantID, inst.TenantID)
	assert.Equal(t, entities.InstanceConnecting, inst.Status)

	_, err = repo.Create(ctx, &entities.Instance{Name: name, TenantID: tenantID, IsActive: true})
	assert.ErrorIs(t, err, entities.ErrAlreadyExists)

	owner, err := repo.TenantForInstance(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, tenantID, owner)

	require.NoError(t, repo.Delete(ctx, name))
	assert.ErrorIs(t, repo.Delete(ctx, name), entities.ErrNotFound)
	_, err = repo.GetByName(ctx, name)
	assert.ErrorIs(t, err, entities.ErrNotFound)
}
