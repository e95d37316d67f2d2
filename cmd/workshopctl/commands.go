package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/shruggr/workshop/localfiles"
	"github.com/shruggr/workshop/models"
	"github.com/shruggr/workshop/workshop"
)

// personaWait bounds how long whoami waits for the persona to load
const personaWait = 5 * time.Second

type command struct {
	session *workshop.Session
	files   localfiles.Store
	out     io.Writer
	logger  *slog.Logger
}

// needsLocalFiles reports whether name operates on the local file index
func needsLocalFiles(name string) bool {
	switch name {
	case "link", "unlink", "files":
		return true
	}
	return false
}

type itemsOutput struct {
	Total uint32         `json:"total"`
	Items []*models.Item `json:"items"`
}

type knownOutput struct {
	Queried bool         `json:"queried"`
	Item    *models.Item `json:"item"`
}

func (c *command) run(ctx context.Context, name string, args []string) error {
	switch name {
	case "item":
		if len(args) != 1 {
			return fmt.Errorf("usage: item <id>")
		}
		id, err := models.ParseItemID(args[0])
		if err != nil {
			return err
		}
		item, err := c.session.FetchOne(ctx, id)
		if err != nil {
			return err
		}
		return c.print(item)

	case "items":
		if len(args) == 0 {
			return fmt.Errorf("usage: items <id>...")
		}
		ids := make([]models.ItemID, 0, len(args))
		for _, arg := range args {
			id, err := models.ParseItemID(arg)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		total, items, err := c.session.FetchMany(ctx, ids)
		if err != nil {
			return err
		}
		return c.print(itemsOutput{Total: total, Items: items})

	case "browse":
		page := uint64(1)
		if len(args) > 0 {
			p, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid page %q: %w", args[0], err)
			}
			page = p
		}
		total, items, err := c.session.Browse(ctx, uint32(page))
		if err != nil {
			return err
		}
		return c.print(itemsOutput{Total: total, Items: items})

	case "whoami":
		return c.print(c.waitForPersona(ctx))

	case "known":
		if len(args) != 1 {
			return fmt.Errorf("usage: known <id>")
		}
		id, err := models.ParseItemID(args[0])
		if err != nil {
			return err
		}
		item, ok := c.session.Known(id)
		return c.print(knownOutput{Queried: ok, Item: item})

	case "link":
		if len(args) != 2 {
			return fmt.Errorf("usage: link <id> <path>")
		}
		return c.link(ctx, args[0], args[1])

	case "unlink":
		if len(args) != 1 {
			return fmt.Errorf("usage: unlink <id>")
		}
		id, err := models.ParseItemID(args[0])
		if err != nil {
			return err
		}
		if err := c.files.Delete(ctx, id); err != nil {
			return err
		}
		c.logger.Info("Unlinked local file", "id", id)
		return nil

	case "files":
		list, err := c.files.List(ctx)
		if err != nil {
			return err
		}
		return c.print(list)

	case "game-dir":
		dir, ok := c.session.GameInstallDir()
		if !ok {
			return fmt.Errorf("app is not installed")
		}
		fmt.Fprintln(c.out, dir)
		return nil
	}
	return fmt.Errorf("unknown command %q", name)
}

// waitForPersona pumps callbacks until the persona name has arrived or ctx ends
func (c *command) waitForPersona(ctx context.Context) *models.UserProfile {
	ctx, cancel := context.WithTimeout(ctx, personaWait)
	defer cancel()

	driver := c.session.Driver()
	ticker := time.NewTicker(driver.Interval())
	defer ticker.Stop()

	for {
		p := c.session.CurrentUser()
		if p.Name != "" {
			return p
		}
		if !driver.Dedicated() {
			driver.Drive()
		}
		select {
		case <-ctx.Done():
			c.logger.Warn("Persona not loaded", "error", context.Cause(ctx))
			return c.session.CurrentUser()
		case <-ticker.C:
		}
	}
}

func (c *command) link(ctx context.Context, rawID, path string) error {
	id, err := models.ParseItemID(rawID)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", abs, err)
	}

	prev, err := c.files.GetByPath(ctx, abs)
	if err != nil {
		return err
	}
	if prev != nil && prev.ItemID != id {
		c.logger.Info("Moving local file to another item", "path", abs, "from", prev.ItemID, "to", id)
	}

	assoc := &localfiles.Association{
		ItemID: id,
		Path:   abs,
		Size:   info.Size(),
	}
	if err := c.files.Put(ctx, assoc); err != nil {
		return err
	}
	c.logger.Info("Linked local file", "id", id, "path", abs)
	return c.print(assoc)
}

func (c *command) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
