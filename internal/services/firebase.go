package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// ErrFirebaseNotConfigured is returned when no service-account file exists at the configured path.
var ErrFirebaseNotConfigured = errors.New("firebase credentials not found")

// InitFirebase builds the Admin SDK auth client used to verify dashboard ID tokens.
func InitFirebase(ctx context.Context, credPath string) (*auth.Client, error) {
	if _, err := os.Stat(credPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFirebaseNotConfigured, credPath)
		}
		return nil, fmt.Errorf("reading firebase credentials: %w", err)
	}

	fb, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credPath))
	if err != nil {
		return nil, fmt.Errorf("initializing firebase app: %w", err)
	}
	client, err := fb.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase auth: %w", err)
	}
	return client, nil
}
