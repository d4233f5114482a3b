package retention

import (
	"context"
	"log/slog"
	"strings"

	"github.com/rivo/uniseg"
)

// previewGraphemes bounds how much of a post body goes into a log line
const previewGraphemes = 80

// Action is applied to every post the walker finds eligible.
type Action func(ctx context.Context, gw Gateway, post Post) error

// Erase fully retires one post: the like goes first, then the repost, then the post itself.
// Relationships are severed while the post still exists. The first failing step is returned
// unchanged and the remaining steps are skipped.
func Erase(ctx context.Context, gw Gateway, post Post) error {
	if post.Favorited() {
		if err := gw.UndoFavorite(ctx, post); err != nil {
			return err
		}
	}

	if post.Reposted() {
		if err := gw.UndoRepost(ctx, post); err != nil {
			return err
		}
	}

	// Ownership is the gateway's call; non-owned posts come back as a no-op
	return gw.DeletePost(ctx, post)
}

// ReportOnly returns an Action that logs what Erase would do and touches nothing.
func ReportOnly(logger *slog.Logger) Action {
	if logger == nil {
		logger = slog.Default()
	}
	return func(_ context.Context, _ Gateway, post Post) error {
		logger.Info("dry run: would erase post",
			"uri", post.URI,
			"created_at", post.CreatedAt,
			"undo_favorite", post.Favorited(),
			"undo_repost", post.Reposted())
		return nil
	}
}

// Preview flattens whitespace in text and cuts it to at most max grapheme clusters,
// so emoji and combining sequences are never split in log output.
func Preview(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")

	var b strings.Builder
	count := 0
	g := uniseg.NewGraphemes(text)
	for g.Next() {
		if count == max {
			b.WriteString("…")
			break
		}
		b.WriteString(g.Str())
		count++
	}
	return b.String()
}
