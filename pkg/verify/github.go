package verify

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHubStatusSource reads combined commit statuses from GitHub, mapping
// them to the poller's tri-state observation.
type GitHubStatusSource struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubStatusSource creates a status source for one repository.
// token may be empty for public repositories.
func NewGitHubStatusSource(ctx context.Context, token, owner, repo string) (*GitHubStatusSource, error) {
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}

	httpClient := oauth2.NewClient(ctx, nil)
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}

	return &GitHubStatusSource{
		client: github.NewClient(httpClient),
		owner:  owner,
		repo:   repo,
	}, nil
}

// StatusFor returns a StatusFunc that observes the combined status of the
// given ref (commit SHA or branch).
//
// GitHub's combined state "error" is reported as a failure observation:
// the run terminated, it just terminated badly.
func (s *GitHubStatusSource) StatusFor(ref string) StatusFunc {
	return func(ctx context.Context) (Status, error) {
		combined, _, err := s.client.Repositories.GetCombinedStatus(ctx, s.owner, s.repo, ref, nil)
		if err != nil {
			return StatusPending, fmt.Errorf("fetching combined status for %s: %w", ref, err)
		}

		switch combined.GetState() {
		case "success":
			return StatusSuccess, nil
		case "failure", "error":
			return StatusFailure, nil
		default:
			return StatusPending, nil
		}
	}
}
