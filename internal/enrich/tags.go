package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raine/lease-to-own/internal/llm"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxTags is the maximum number of tags kept per listing.
	MaxTags = 15
	// DefaultMaxImages is how many leading image URLs are sent for tagging.
	DefaultMaxImages = 3
)

// PurposeVision labels vision calls in logs and in the mock provider.
const PurposeVision = "vision"

// TagResult is the output of the tag/caption extractor.
type TagResult struct {
	Tags    []string
	Caption string
}

// TagExtractor derives descriptive tags and a caption from listing photos.
type TagExtractor struct {
	provider  llm.Provider
	images    ImageSource
	maxImages int
}

// NewTagExtractor creates a TagExtractor that sends at most maxImages
// images to the provider. maxImages is clamped to 1..DefaultMaxImages.
func NewTagExtractor(provider llm.Provider, images ImageSource, maxImages int) *TagExtractor {
	if maxImages <= 0 || maxImages > DefaultMaxImages {
		maxImages = DefaultMaxImages
	}
	return &TagExtractor{provider: provider, images: images, maxImages: maxImages}
}

type visionResult struct {
	ok      bool
	tags    []string
	caption string
}

// Extract fetches the leading images and asks the provider to describe each.
// Images the host rejects (ErrImageRejected) are skipped and replies without
// tags contribute none. Network failures while downloading and provider
// failures are returned and abort the run.
func (e *TagExtractor) Extract(ctx context.Context, imageURLs []string) (TagResult, error) {
	if len(imageURLs) > e.maxImages {
		imageURLs = imageURLs[:e.maxImages]
	}
	if len(imageURLs) == 0 {
		return TagResult{Tags: []string{}}, nil
	}

	results := make([]visionResult, len(imageURLs))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range imageURLs {
		g.Go(func() error {
			img, err := e.images.Fetch(gctx, url)
			if errors.Is(err, ErrImageRejected) {
				log.Warn().Err(err).Str("url", url).Msg("skipping listing image")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to fetch image %s: %w", url, err)
			}

			resp, err := e.provider.Generate(gctx, llm.Request{
				Prompt:  formatPrompt(visionPrompt),
				Images:  []llm.Image{img},
				Purpose: PurposeVision,
			})
			if err != nil {
				return err
			}

			results[i] = parseVisionResponse(resp.Text)
			if !results[i].ok {
				log.Warn().Str("url", url).Msg("vision response was empty")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return TagResult{}, err
	}

	var raw []string
	caption := ""
	for _, r := range results {
		if !r.ok {
			continue
		}
		raw = append(raw, r.tags...)
		if caption == "" {
			caption = r.caption
		}
	}

	return TagResult{Tags: normalizeTags(raw), Caption: caption}, nil
}

// parseVisionResponse reads "tags:" and "caption:" lines from a model reply.
// Without a caption line the first other non-empty line is the caption, so a
// prose-only reply yields a caption and no tags. Only an empty reply is not ok.
func parseVisionResponse(text string) visionResult {
	var r visionResult
	var hasTags, hasCaption bool
	fallback := ""

	for _, line := range strings.Split(llm.StripCodeFences(text), "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*"))
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		key = strings.ToLower(strings.Trim(strings.TrimSpace(key), "*_"))
		switch {
		case found && key == "tags":
			hasTags = true
			r.tags = append(r.tags, splitTags(cleanValue(value))...)
		case found && key == "caption":
			if !hasCaption {
				r.caption = strings.Trim(cleanValue(value), `"`)
				hasCaption = r.caption != ""
			}
		default:
			if fallback == "" {
				fallback = line
			}
		}
	}

	if !hasCaption {
		r.caption = fallback
	}
	r.ok = hasTags || r.caption != ""
	return r
}

// cleanValue drops markdown emphasis left over from "**tags:**" style keys.
func cleanValue(v string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(v), "*_"))
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// normalizeTags lower-cases, cleans and deduplicates tags in first-seen
// order, keeping at most MaxTags.
func normalizeTags(raw []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, t := range raw {
		t = strings.TrimSpace(t)
		t = strings.Trim(t, `"'#`+"`")
		t = strings.TrimRight(t, ".!?")
		t = strings.ToLower(strings.Join(strings.Fields(t), " "))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == MaxTags {
			break
		}
	}
	return out
}
