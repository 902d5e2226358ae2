package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/and161185/makerhub/internal/client/api"
	"github.com/and161185/makerhub/internal/model"
)

func (c *cli) signup(ctx context.Context, args []string) error {
	eventID, args, err := positional(args, "event-id")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("signup", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	var in model.RegistrationInput
	fs.StringVar(&in.Name, "name", "", "attendee name")
	fs.StringVar(&in.Email, "e", "", "attendee email")
	fs.StringVar(&in.Phone, "phone", "", "phone")
	fs.StringVar(&in.Organization, "org", "", "organization")
	fs.StringVar(&in.ExperienceLevel, "level", "", "experience level")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if in.Name == "" || in.Email == "" {
		fmt.Fprintln(c.stderr, "need -name and -e")
		return errUsage
	}
	reg, err := c.client.RegisterForEvent(ctx, eventID, in)
	if err != nil {
		return err
	}
	return printJSON(c.stdout, reg)
}

func (c *cli) users(ctx context.Context, args []string) error {
	sub, args, err := positional(args, "subcommand")
	if err != nil {
		return err
	}
	if sub == "list" {
		fs := flag.NewFlagSet("users list", flag.ContinueOnError)
		fs.SetOutput(c.stderr)
		var p api.ListParams
		fs.StringVar(&p.Role, "role", "", "role filter")
		fs.StringVar(&p.Search, "search", "", "username, email or name search")
		fs.IntVar(&p.Page, "page", 0, "page number")
		fs.IntVar(&p.Size, "size", 0, "page size")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		page, err := c.client.Users().List(ctx, p)
		if err != nil {
			return err
		}
		return printJSON(c.stdout, page)
	}

	id, args, err := positional(args, "uuid")
	if err != nil {
		return err
	}
	var resp *model.APIResponse
	switch sub {
	case "show":
		u, err := c.client.Users().Get(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(c.stdout, u)
	case "rm":
		if err := c.client.Users().Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, "User deleted successfully")
		return nil
	case "role":
		role, _, err := positional(args, "role")
		if err != nil {
			return err
		}
		resp, err = c.client.SetUserRole(ctx, id, role)
		if err != nil {
			return err
		}
	case "activate", "deactivate":
		resp, err = c.client.SetUserActive(ctx, id, sub == "activate")
		if err != nil {
			return err
		}
	default:
		fmt.Fprintf(c.stderr, "unknown users subcommand %q\n", sub)
		return errUsage
	}
	fmt.Fprintln(c.stdout, resp.Message)
	return nil
}

func (c *cli) registrations(ctx context.Context, args []string) error {
	sub, args, err := positional(args, "subcommand")
	if err != nil {
		return err
	}
	switch sub {
	case "list":
		fs := flag.NewFlagSet("registrations list", flag.ContinueOnError)
		fs.SetOutput(c.stderr)
		var p api.ListParams
		fs.StringVar(&p.EventID, "event", "", "event id")
		fs.StringVar(&p.Status, "status", "", "confirmed|cancelled|attended")
		fs.StringVar(&p.Search, "search", "", "name, email or organization search")
		fs.IntVar(&p.Page, "page", 0, "page number")
		fs.IntVar(&p.Size, "size", 0, "page size")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		page, err := c.client.Registrations().List(ctx, p)
		if err != nil {
			return err
		}
		return printJSON(c.stdout, page)
	case "status":
		id, args, err := positional(args, "uuid")
		if err != nil {
			return err
		}
		status, _, err := positional(args, "status")
		if err != nil {
			return err
		}
		resp, err := c.client.SetRegistrationStatus(ctx, id, status)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, resp.Message)
		return nil
	case "rm":
		id, _, err := positional(args, "uuid")
		if err != nil {
			return err
		}
		if err := c.client.Registrations().Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(c.stdout, "Registration deleted successfully")
		return nil
	default:
		fmt.Fprintf(c.stderr, "unknown registrations subcommand %q\n", sub)
		return errUsage
	}
}
