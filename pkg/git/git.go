// Package git is the source control client used by the install and update plans.
package git

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/provisionkit/provision/pkg/shell"
	"github.com/provisionkit/provision/pkg/util/console"
	"github.com/provisionkit/provision/pkg/util/files"
)

var ErrNotWorkTree = errors.New("not a git work tree")

const describeTimeout = 3 * time.Second

// Client runs git against directories relative to Root.
type Client struct {
	Root   string
	Runner shell.Runner
}

func NewClient(root string, runner shell.Runner) *Client {
	return &Client{Root: root, Runner: runner}
}

// Clone clones uri into dir. An existing, non-empty dir is refused so that a
// second install never clobbers a checkout.
func (c *Client) Clone(ctx context.Context, uri string, dir string) error {
	path, err := files.ResolvePath(c.Root, dir)
	if err != nil {
		return err
	}
	exists, err := files.Exists(path)
	if err != nil {
		return err
	}
	if exists {
		empty, err := files.IsEmpty(path)
		if err != nil {
			return err
		}
		if !empty {
			return fmt.Errorf("%s already exists; run update instead", dir)
		}
	}

	console.Infof("Cloning %s", uri)
	if err := c.Runner.Run(ctx, shell.Command{Name: "git", Args: []string{"clone", uri, path}, Dir: c.Root}); err != nil {
		return fmt.Errorf("Failed to clone %s: %w", uri, err)
	}
	return nil
}

// Update discards local changes in dir and pulls the tracked branch.
func (c *Client) Update(ctx context.Context, dir string) error {
	path, err := files.ResolvePath(c.Root, dir)
	if err != nil {
		return err
	}
	if !c.isWorkTree(ctx, path) {
		return fmt.Errorf("%s: %w", dir, ErrNotWorkTree)
	}

	if err := c.Runner.Run(ctx, shell.Command{Name: "git", Args: []string{"reset", "--hard", "HEAD"}, Dir: path}); err != nil {
		return fmt.Errorf("Failed to reset %s: %w", dir, err)
	}
	if err := c.Runner.Run(ctx, shell.Command{Name: "git", Args: []string{"pull"}, Dir: path}); err != nil {
		return fmt.Errorf("Failed to pull %s: %w", dir, err)
	}

	if head, err := c.Describe(ctx, dir); err == nil {
		console.Infof("%s is now at %s", dir, head)
	}
	return nil
}

// Head is the commit a checkout is on.
type Head struct {
	Commit string
	Time   time.Time
}

func (h Head) String() string {
	if h.Time.IsZero() {
		return h.Commit
	}
	return h.Commit + " (" + console.FormatTime(h.Time) + ")"
}

// Describe returns the short commit hash and commit time of dir's HEAD.
func (c *Client) Describe(ctx context.Context, dir string) (Head, error) {
	path, err := files.ResolvePath(c.Root, dir)
	if err != nil {
		return Head{}, err
	}
	if !c.isWorkTree(ctx, path) {
		return Head{}, fmt.Errorf("%s: %w", dir, ErrNotWorkTree)
	}

	ctx, cancel := context.WithTimeout(ctx, describeTimeout)
	defer cancel()

	out, err := c.Runner.Output(ctx, shell.Command{Name: "git", Args: []string{"-C", path, "log", "-1", "--format=%h %ct"}})
	if err != nil {
		return Head{}, err
	}
	return parseHead(out)
}

func (c *Client) isWorkTree(ctx context.Context, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, describeTimeout)
	defer cancel()

	out, err := c.Runner.Output(ctx, shell.Command{Name: "git", Args: []string{"-C", path, "rev-parse", "--is-inside-work-tree"}})
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) == "true"
}

func parseHead(out string) (Head, error) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return Head{}, fmt.Errorf("unexpected git log output %q", out)
	}
	head := Head{Commit: fields[0]}
	if len(fields) > 1 {
		secs, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Head{}, fmt.Errorf("unexpected commit time %q: %w", fields[1], err)
		}
		head.Time = time.Unix(secs, 0)
	}
	return head, nil
}
