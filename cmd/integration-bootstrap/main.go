// Seeds a test hub with the fixtures the E2E suite expects: a group, a user
// in it and a namespace the group owns. Safe to re-run.
//
// Usage: go run ./cmd/integration-bootstrap --group e2e --user e2e --namespace e2e
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
	"github.com/tonimelisma/galaxykit-go/testutil"
)

func main() {
	group := flag.String("group", "e2e", "group to create")
	user := flag.String("user", "e2e", "user to create and add to the group")
	userPassword := flag.String("user-password", "e2e-Passw0rd", "password for the created user")
	namespace := flag.String("namespace", "e2e", "namespace owned by the group")
	flag.Parse()

	testutil.LoadDotEnv(filepath.Join(testutil.FindModuleRoot("."), ".env"))
	server := testutil.ValidateAllowlist(testutil.EnvE2EServer)

	ctx := context.Background()
	logger := slog.Default()

	c, err := galaxy.NewClient(ctx, server, galaxy.PasswordAuth{
		Username: testutil.Getenv(testutil.EnvE2EUsername, "admin"),
		Password: testutil.Getenv(testutil.EnvE2EPassword, "admin"),
	}, galaxy.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "connecting to %s: %v\n", server, err)
		os.Exit(1)
	}

	if err := seed(ctx, c, *group, *user, *userPassword, *namespace); err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Seeded %s: group %s, user %s, namespace %s\n", server, *group, *user, *namespace)
}

func seed(ctx context.Context, c *galaxy.Client, group, user, userPassword, namespace string) error {
	if _, _, err := c.GetOrCreateGroup(ctx, group); err != nil {
		return fmt.Errorf("group %s: %w", group, err)
	}

	if _, _, err := c.GetOrCreateUser(ctx, galaxy.User{Username: user, Password: userPassword}); err != nil {
		return fmt.Errorf("user %s: %w", user, err)
	}

	if _, err := c.AddUserToGroup(ctx, user, group); err != nil {
		return fmt.Errorf("adding %s to %s: %w", user, group, err)
	}

	if _, err := c.CreateNamespace(ctx, namespace, group); err != nil {
		return fmt.Errorf("namespace %s: %w", namespace, err)
	}

	return nil
}
