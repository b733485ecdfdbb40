// Command admin manages administrators and course grants from the shell.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"lectern/internal/config"
	"lectern/internal/database"
	"lectern/internal/events"
	"lectern/internal/middleware"
	"lectern/internal/models"
	"lectern/internal/repository"
	"lectern/internal/service"

	"gorm.io/gorm"
)

const usageText = `Usage:
  go run ./cmd/admin promote <user_id|email>       - Promote user to admin
  go run ./cmd/admin demote <user_id|email>        - Demote user from admin
  go run ./cmd/admin list-admins                   - List all admins
  go run ./cmd/admin grant <user_id|email> <course_id>   - Grant course access
  go run ./cmd/admin revoke <user_id|email> <course_id>  - Revoke course access
`

func main() {
	if len(os.Args) < 2 {
		fmt.Print(usageText)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	middleware.SetupLogger(cfg.Env, os.Stderr)

	db, err := database.Connect(cfg)
	if err != nil {
		middleware.Logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = database.Close(db) }()

	if err := run(context.Background(), newTools(db), os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type tools struct {
	users  repository.UserRepository
	userSv *service.UserService
	grants *service.GrantService
}

func newTools(db *gorm.DB) *tools {
	users := repository.NewUserRepository(db)
	courses := repository.NewCourseRepository(db)
	audit := service.NewAuditService(repository.NewAuditRepository(db), events.Noop{})
	return &tools{
		users:  users,
		userSv: service.NewUserService(users, audit),
		grants: service.NewGrantService(repository.NewAccessRepository(db), users, courses, audit),
	}
}

func run(ctx context.Context, t *tools, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", usageText)
	}
	// Shell actions are recorded without an acting user.
	system := service.Viewer{}

	switch args[0] {
	case "promote", "demote":
		if len(args) < 2 {
			return fmt.Errorf("usage: %s <user_id|email>", args[0])
		}
		user, err := t.resolveUser(ctx, args[1])
		if err != nil {
			return err
		}
		if args[0] == "promote" {
			user, err = t.userSv.Promote(ctx, system, user.ID)
		} else {
			user, err = t.userSv.Demote(ctx, system, user.ID)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "user %d (%s) admin=%t\n", user.ID, user.Email, user.IsAdmin)

	case "list-admins":
		admins, err := t.userSv.ListAdmins(ctx)
		if err != nil {
			return err
		}
		if len(admins) == 0 {
			fmt.Fprintln(out, "no admins")
			return nil
		}
		for _, a := range admins {
			fmt.Fprintf(out, "%d\t%s\t%s\n", a.ID, a.Email, a.Name)
		}

	case "grant", "revoke":
		if len(args) < 3 {
			return fmt.Errorf("usage: %s <user_id|email> <course_id>", args[0])
		}
		user, err := t.resolveUser(ctx, args[1])
		if err != nil {
			return err
		}
		courseID, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil || courseID == 0 {
			return fmt.Errorf("invalid course id %q", args[2])
		}
		if args[0] == "grant" {
			if _, err := t.grants.Grant(ctx, system, user.ID, uint(courseID)); err != nil {
				return err
			}
			fmt.Fprintf(out, "granted course %d to user %d\n", courseID, user.ID)
			return nil
		}
		if err := t.grants.RevokePair(ctx, system, user.ID, uint(courseID)); err != nil {
			return err
		}
		fmt.Fprintf(out, "revoked course %d from user %d\n", courseID, user.ID)

	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usageText)
	}
	return nil
}

// resolveUser accepts a numeric ID or an email address.
func (t *tools) resolveUser(ctx context.Context, ref string) (*models.User, error) {
	if id, err := strconv.ParseUint(ref, 10, 64); err == nil {
		return t.users.GetByID(ctx, uint(id))
	}
	user, err := t.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(ref)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", ref)
	}
	return user, nil
}
