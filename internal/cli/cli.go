// Package cli реализует команды обслуживания authctl
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/iudanet/linaform/internal/iocli"
	"github.com/iudanet/linaform/internal/models"
	"github.com/iudanet/linaform/internal/server/session"
)

// ErrUnknownCommand возвращается для неизвестной команды
var ErrUnknownCommand = errors.New("unknown command")

// Sessions операции менеджера сессий, доступные из консоли
type Sessions interface {
	Register(ctx context.Context, email, username, password string) (models.PublicUser, error)
	Sweep(ctx context.Context) (int, error)
}

type Cli struct {
	io       iocli.IO
	sessions Sessions
}

func New(io iocli.IO, sessions Sessions) *Cli {
	return &Cli{
		io:       io,
		sessions: sessions,
	}
}

// Run выполняет команду с ее аргументами
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "cleanup":
		return c.runCleanup(ctx)
	case "adduser":
		return c.runAddUser(ctx, args)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

// runCleanup удаляет истекшие refresh token
func (c *Cli) runCleanup(ctx context.Context) error {
	deleted, err := c.sessions.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean refresh tokens: %w", err)
	}

	c.io.Printf("Deleted %d expired refresh tokens\n", deleted)
	return nil
}

// runAddUser регистрирует пользователя, недостающие поля запрашивает интерактивно
func (c *Cli) runAddUser(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("adduser", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", "", "user email")
	username := fs.String("username", "", "user name")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("invalid adduser arguments: %w", err)
	}

	var err error
	if *email == "" {
		if *email, err = c.io.ReadInput("Email: "); err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
	}
	if *username == "" {
		if *username, err = c.io.ReadInput("Username: "); err != nil {
			return fmt.Errorf("failed to read username: %w", err)
		}
	}

	password, err := c.io.ReadPassword("Password: ")
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	// Подтверждение пароля
	confirm, err := c.io.ReadPassword("Confirm password: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}

	user, err := c.sessions.Register(ctx, *email, *username, password)
	if err != nil {
		var vErr *session.ValidationError
		if errors.As(err, &vErr) {
			return fmt.Errorf("invalid user data: %s", vErr.Message)
		}
		return err
	}

	c.io.Println("✓ User created")
	c.io.Printf("User ID: %s\n", user.ID)
	c.io.Printf("Username: %s\n", user.Username)
	c.io.Printf("Email: %s\n", user.Email)

	return nil
}

// PrintUsage выводит справку по командам
func PrintUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: authctl [config flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  cleanup                               delete expired refresh tokens")
	fmt.Fprintln(w, "  adduser [-email E] [-username U]      create a user, password is prompted")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config flags and environment variables are the same as for the server.")
}
