package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveUser_PreservesClaims(t *testing.T) {
	store := newTestStore(t)

	u := &User{ID: "u1", Email: "a@example.com", Role: RoleAdmin}
	require.NoError(t, store.SaveUser(u))
	assert.Equal(t, map[string]bool{}, u.Claims)

	require.NoError(t, store.SetUserClaims("u1", map[string]bool{ClaimAdmin: true}))

	u.Email = "b@example.com"
	require.NoError(t, store.SaveUser(u))

	got, err := store.GetUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "b@example.com", got.Email)
	assert.True(t, got.HasClaim(ClaimAdmin))
}

func TestSaveUser_PublishesChanges(t *testing.T) {
	store := newTestStore(t)
	changes := recordChanges(store)

	require.NoError(t, store.SaveUser(&User{ID: "u1", Role: "renter"}))
	require.NoError(t, store.SaveUser(&User{ID: "u1", Role: RoleAdmin}))

	all := changes.all()
	require.Len(t, all, 2)
	assert.Equal(t, UserPath("u1"), all[0].Path)
	assert.Nil(t, all[0].Before)
	assert.Equal(t, "renter", all[1].Before["role"])
	assert.Equal(t, RoleAdmin, all[1].After["role"])
}

func TestSetUserClaims_Missing(t *testing.T) {
	store := newTestStore(t)
	assert.ErrorIs(t, store.SetUserClaims("ghost", map[string]bool{ClaimAdmin: true}), ErrNotFound)
}

func TestUserToken(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.SaveUser(&User{ID: "u1"}))
	require.NoError(t, store.SetUserToken("u1", "secret-token"))

	got, err := store.GetUserByToken("secret-token")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)

	got, err = store.GetUserByToken("wrong")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.GetUserByToken("")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, store.SetUserToken("ghost", "t"), ErrNotFound)
}

func TestHasClaim_NilUser(t *testing.T) {
	var u *User
	assert.False(t, u.HasClaim(ClaimAdmin))
}

func TestAdmins_ContactFieldsEncrypted(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SaveAdmin(&Admin{UserID: "a2", Name: "Bea", Phone: "+15550100"}))
	require.NoError(t, store.SaveAdmin(&Admin{UserID: "a1", Name: "Al", Email: "al@example.com", TelegramChatID: 42}))

	var rawEmail string
	require.NoError(t, store.db.QueryRow("SELECT encrypted_email FROM admins WHERE user_id = 'a1'").Scan(&rawEmail))
	assert.NotEmpty(t, rawEmail)
	assert.NotContains(t, rawEmail, "al@example.com")

	admins, err := store.GetAdmins()
	require.NoError(t, err)
	require.Len(t, admins, 2)
	assert.Equal(t, Admin{UserID: "a1", Name: "Al", Email: "al@example.com", TelegramChatID: 42}, admins[0])
	assert.Equal(t, Admin{UserID: "a2", Name: "Bea", Phone: "+15550100"}, admins[1])
}
