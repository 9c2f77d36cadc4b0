package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/yms/internal/server"
	"github.com/desertthunder/yms/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// AuthLogin runs the Yandex OAuth authorization code flow and saves the token to the config file.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	config, err := r.loadConfig(configPath)
	if err != nil {
		return err
	}
	if configPath == "" {
		configPath = defaultConfigPath
	}

	oauthConfig, err := config.Destination.OAuthConfig()
	if err != nil {
		return fmt.Errorf("%w: set destination.client_id and destination.client_secret in %s", err, configPath)
	}

	token, err := r.doOAuth(ctx, oauthConfig)
	if err != nil {
		return err
	}

	config.Destination.Token = token.AccessToken
	if err := shared.SaveConfig(configPath, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("%s Authorization successful", r.palette.OK("✓"))
	r.writePlain("%s Token saved to %s\n\n", r.palette.OK("✓"), configPath)
	r.writePlain("You can now use: yms sync run\n")
	return nil
}

// doOAuth serves the redirect URI locally until the callback arrives or the flow times out.
func (r *Runner) doOAuth(ctx context.Context, oauthConfig *oauth2.Config) (*oauth2.Token, error) {
	redirect, err := url.Parse(oauthConfig.RedirectURL)
	if err != nil || redirect.Host == "" {
		return nil, fmt.Errorf("%w: redirect_uri %q", shared.ErrInvalidConfig, oauthConfig.RedirectURL)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	oauthHandler := server.NewOAuthHandler(oauthConfig, state, redirect.Path)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(oauthHandler)

	listener, err := server.Listen(redirect.Host, router)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	r.logger.Infof("starting OAuth callback server at %v", listener.Addr())

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := listener.Shutdown(shutdownCtx); err != nil {
			r.logger.Warn("error shutting down server", "error", err)
		}
	}()

	authURL := oauthHandler.AuthURL()
	r.writePlain("→ Opening browser for Yandex authorization...\n")
	if err := r.openURL(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-listener.Errors():
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, result.Error()
	}
	if result.Token == nil || result.Token.AccessToken == "" {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthorization)
	}
	return result.Token, nil
}
