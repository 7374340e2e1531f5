package tags

import (
	"fmt"

	"github.com/docker/distribution/reference"
)

// ValidateRepository checks that repo is a valid, untagged image repository name
func ValidateRepository(repo string) error {
	named, err := reference.ParseNormalizedNamed(repo)
	if err != nil {
		return fmt.Errorf("invalid repository %q: %w", repo, err)
	}
	if _, ok := named.(reference.Tagged); ok {
		return fmt.Errorf("repository %q must not carry a tag", repo)
	}
	if _, ok := named.(reference.Digested); ok {
		return fmt.Errorf("repository %q must not carry a digest", repo)
	}
	return nil
}

// ImageRef joins a repository and a resolved tag into an image reference
func ImageRef(repo, tag string) (string, error) {
	named, err := reference.ParseNormalizedNamed(repo)
	if err != nil {
		return "", fmt.Errorf("invalid repository %q: %w", repo, err)
	}

	tagged, err := reference.WithTag(reference.TrimNamed(named), tag)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidTag, tag, err)
	}
	return reference.FamiliarString(tagged), nil
}

// ImageRefs resolves tag templates and joins each tag to the repository
func ImageRefs(repo string, templates []string, vars map[string]string) ([]string, []string, error) {
	resolved, err := ResolveAll(templates, vars)
	if err != nil {
		return nil, nil, err
	}

	refs := make([]string, 0, len(resolved))
	for _, tag := range resolved {
		ref, err := ImageRef(repo, tag)
		if err != nil {
			return nil, nil, err
		}
		refs = append(refs, ref)
	}
	return resolved, refs, nil
}
