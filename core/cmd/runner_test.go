package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/sushef/core/config"
	coretelegram "github.com/m3rciful/sushef/core/telegram"
)

type carrier struct{ cfg *coreconfig.Config }

func (c carrier) CoreConfig() *coreconfig.Config { return c.cfg }

type fakeApp struct{}

func (fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func TestResolveConfigPathPrecedence(t *testing.T) {
	t.Setenv("SUSHEF_TEST_CONFIG", "/etc/sushef/env.yaml")

	p, err := Options{ConfigPath: "flag.yaml", ConfigEnvVar: "SUSHEF_TEST_CONFIG"}.ResolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "flag.yaml", p)

	p, err = Options{ConfigEnvVar: "SUSHEF_TEST_CONFIG", DefaultConfigPath: "config.yaml"}.ResolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/etc/sushef/env.yaml", p)

	p, err = Options{ConfigEnvVar: "SUSHEF_TEST_UNSET", DefaultConfigPath: "config.yaml"}.ResolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "config.yaml", p)

	_, err = Options{ConfigEnvVar: "SUSHEF_TEST_UNSET"}.ResolveConfigPath()
	assert.Error(t, err)
}

func TestRunWiresLifecycleHooks(t *testing.T) {
	var ran bool
	err := Run(Options{
		ConfigPath:     "config.yaml",
		LoadConfig:     func(string) (ConfigCarrier, error) { return carrier{cfg: &coreconfig.Config{}}, nil },
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return fakeApp{}, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			ran = true
			require.NotNil(t, opts.OnStart)
			require.NotNil(t, opts.OnStop)
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			return opts.OnStop(ctx, coretelegram.Runtime{})
		},
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRunPropagatesBootstrapError(t *testing.T) {
	boom := errors.New("relay.url is required")
	err := Run(Options{
		ConfigPath:     "config.yaml",
		LoadConfig:     func(string) (ConfigCarrier, error) { return carrier{cfg: &coreconfig.Config{}}, nil },
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return nil, boom },
		ShutdownLogger: func() error { return nil },
	})
	assert.ErrorIs(t, err, boom)
}
