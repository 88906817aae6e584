// Package git is the version-control collaborator for the integrate
// phase: it stages a remediation's changed files, commits them with a
// message, and pushes to a named branch.
//
// The external repository is treated as append-only and never assumed to
// be exclusively ours: concurrent human or automated pushes are expected,
// so a rejected push is reported as a typed error and never retried
// blindly.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

var (
	// ErrNothingToCommit indicates the worktree had no changes to stage.
	// Callers usually map this to a skipped integrate phase.
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrPushRejected indicates the remote refused the push (e.g. a
	// non-fast-forward update after a concurrent change).
	ErrPushRejected = errors.New("push rejected")
)

// Default author identity for pipeline commits.
const (
	DefaultAuthorName  = "skilld"
	DefaultAuthorEmail = "skilld@fyrsmithlabs.dev"
)

// CommitRequest describes one integrate operation.
type CommitRequest struct {
	// Branch to commit on; created from the current HEAD if it does not
	// exist yet. Empty means the current branch.
	Branch string

	// Message is the commit message.
	Message string

	// Files maps repo-relative paths to their new content. These are
	// written and staged. Paths already modified in the worktree are
	// staged too.
	Files map[string]string

	// AuthorName and AuthorEmail override the default pipeline identity.
	AuthorName  string
	AuthorEmail string
}

// CommitResult reports a completed integrate operation.
type CommitResult struct {
	SHA    string `json:"sha"`
	Branch string `json:"branch"`
}

// Committer commits and pushes pipeline remediations for one repository.
type Committer struct {
	repoPath string
	logger   *zap.Logger
}

// NewCommitter creates a committer for the repository at repoPath.
func NewCommitter(repoPath string, logger *zap.Logger) *Committer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Committer{repoPath: repoPath, logger: logger}
}

// Commit writes the request's files, stages every pending change, and
// commits on the requested branch. It does not push.
func (c *Committer) Commit(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	repo, err := gogit.PlainOpen(c.repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", c.repoPath, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}

	branch := req.Branch
	if branch != "" {
		if err := c.checkoutBranch(repo, worktree, branch); err != nil {
			return nil, err
		}
	} else {
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("reading HEAD: %w", err)
		}
		branch = head.Name().Short()
	}

	if err := c.writeFiles(req.Files); err != nil {
		return nil, err
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("reading worktree status: %w", err)
	}
	if status.IsClean() {
		return nil, ErrNothingToCommit
	}
	for path := range status {
		if _, err := worktree.Add(path); err != nil {
			return nil, fmt.Errorf("staging %s: %w", path, err)
		}
	}

	author := &object.Signature{
		Name:  req.AuthorName,
		Email: req.AuthorEmail,
		When:  time.Now(),
	}
	if author.Name == "" {
		author.Name = DefaultAuthorName
	}
	if author.Email == "" {
		author.Email = DefaultAuthorEmail
	}

	sha, err := worktree.Commit(req.Message, &gogit.CommitOptions{Author: author})
	if err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}

	c.logger.Info("remediation committed",
		zap.String("sha", sha.String()),
		zap.String("branch", branch),
	)

	return &CommitResult{SHA: sha.String(), Branch: branch}, nil
}

// CommitAndPush commits and then pushes the branch to origin.
//
// A remote that is already up to date is not an error. A rejected push
// wraps ErrPushRejected; the caller decides how to surface it, and the
// committer never retries on its own.
func (c *Committer) CommitAndPush(ctx context.Context, req CommitRequest) (*CommitResult, error) {
	result, err := c.Commit(ctx, req)
	if err != nil {
		return nil, err
	}

	repo, err := gogit.PlainOpen(c.repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository %s: %w", c.repoPath, err)
	}

	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", result.Branch, result.Branch))
	err = repo.PushContext(ctx, &gogit.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
	})
	switch {
	case err == nil, errors.Is(err, gogit.NoErrAlreadyUpToDate):
		c.logger.Info("remediation pushed",
			zap.String("sha", result.SHA),
			zap.String("branch", result.Branch),
		)
		return result, nil
	case strings.Contains(err.Error(), "non-fast-forward"):
		return nil, fmt.Errorf("%w: %v", ErrPushRejected, err)
	default:
		return nil, fmt.Errorf("pushing %s: %w", result.Branch, err)
	}
}

// checkoutBranch switches to the branch, creating it from HEAD when it
// does not exist. Worktree changes are kept across the switch.
func (c *Committer) checkoutBranch(repo *gogit.Repository, worktree *gogit.Worktree, branch string) error {
	ref := plumbing.NewBranchReferenceName(branch)
	_, err := repo.Reference(ref, true)
	create := err != nil

	if err := worktree.Checkout(&gogit.CheckoutOptions{
		Branch: ref,
		Create: create,
		Keep:   true,
	}); err != nil {
		return fmt.Errorf("checking out branch %s: %w", branch, err)
	}
	return nil
}

// writeFiles writes repo-relative file contents into the worktree.
func (c *Committer) writeFiles(files map[string]string) error {
	for rel, content := range files {
		abs := filepath.Join(c.repoPath, rel)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return fmt.Errorf("creating directory for %s: %w", rel, err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", rel, err)
		}
	}
	return nil
}
