package git

import (
	gogit "github.com/go-git/go-git/v5"
)

// DetectBranch returns the current branch of the repository at
// projectPath, or "" if the path is not a repository or HEAD is detached.
// Detection failures are not errors: the integrate phase falls back to
// an explicit branch name.
func DetectBranch(projectPath string) string {
	repo, err := gogit.PlainOpen(projectPath)
	if err != nil {
		return ""
	}

	head, err := repo.Head()
	if err != nil {
		return ""
	}

	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return ""
}

// IsMainBranch reports whether branch is a conventional main branch.
// Pipelines never push remediations straight to a main branch.
func IsMainBranch(branch string) bool {
	return branch == "main" || branch == "master"
}
