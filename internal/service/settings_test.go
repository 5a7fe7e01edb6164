package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsDefaultsOnFirstRead(t *testing.T) {
	env := newTestEnv(t)

	st, err := env.settings.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, st.MaxOverpaymentRatio)
	assert.Equal(t, int64(100000), st.MaxAutoCreditPaisa)
	assert.Equal(t, 24, st.OrderExpiryHours)
	assert.Equal(t, 3, st.MaxFulfillRetries)
	assert.True(t, st.AutoMatchEnabled)
	assert.True(t, st.AutoFulfillEnabled)
}

func TestSettingsPartialUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	ratio := 5.0
	off := false
	st, err := env.settings.Update(ctx, SettingsPatch{
		MaxOverpaymentRatio: &ratio,
		AutoFulfillEnabled:  &off,
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, st.MaxOverpaymentRatio)
	assert.False(t, st.AutoFulfillEnabled)
	// Untouched fields keep their values.
	assert.Equal(t, 24, st.OrderExpiryHours)

	// The cache must serve the new values immediately.
	got, err := env.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, got.MaxOverpaymentRatio)
	assert.False(t, got.AutoFulfillEnabled)
}

func TestSettingsValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	badRatio := 0.5
	_, err := env.settings.Update(ctx, SettingsPatch{MaxOverpaymentRatio: &badRatio})
	assert.ErrorIs(t, err, ErrInvalidSetting)

	badCeiling := int64(-1)
	_, err = env.settings.Update(ctx, SettingsPatch{MaxAutoCreditPaisa: &badCeiling})
	assert.ErrorIs(t, err, ErrInvalidSetting)

	zero := 0
	_, err = env.settings.Update(ctx, SettingsPatch{MaxFulfillRetries: &zero})
	assert.ErrorIs(t, err, ErrInvalidSetting)

	// A failed update leaves stored settings untouched.
	st, err := env.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3.0, st.MaxOverpaymentRatio)
	assert.Equal(t, 3, st.MaxFulfillRetries)
}

func TestDisableAutoFulfillSurvivesCacheReload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.settings.Get(ctx) // warm the cache
	require.NoError(t, err)
	require.NoError(t, env.settings.DisableAutoFulfill(ctx))

	st, err := env.settings.Get(ctx)
	require.NoError(t, err)
	assert.False(t, st.AutoFulfillEnabled)

	// A fresh service over the same store sees the durable value.
	fresh := NewSettingsService(env.store.Settings())
	st, err = fresh.Get(ctx)
	require.NoError(t, err)
	assert.False(t, st.AutoFulfillEnabled)
}
