package chat

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/criadex/criabot/criadex"
)

// markdownImagePattern matches markdown image syntax ![label](target).
var markdownImagePattern = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)

// ExtractMarkdownImageIDs extracts the asset UUIDs referenced by
// markdown images in the text. Targets that do not parse as UUIDs are
// ignored.
func ExtractMarkdownImageIDs(text string) map[uuid.UUID]struct{} {
	ids := map[uuid.UUID]struct{}{}
	for _, match := range markdownImagePattern.FindAllStringSubmatch(text, -1) {
		id, err := uuid.Parse(match[2])
		if err != nil {
			continue
		}
		ids[id] = struct{}{}
	}
	return ids
}

// UsedAssets filters assets to those referenced in the reply text,
// deduplicated, in asset arrival order.
func UsedAssets(text string, assets []criadex.Asset) []criadex.Asset {
	usedIDs := ExtractMarkdownImageIDs(text)
	yielded := map[string]struct{}{}

	var used []criadex.Asset
	for _, asset := range assets {
		if _, ok := yielded[asset.UUID]; ok {
			continue
		}
		id, err := uuid.Parse(asset.UUID)
		if err != nil {
			continue
		}
		if _, ok := usedIDs[id]; ok {
			yielded[asset.UUID] = struct{}{}
			used = append(used, asset)
		}
	}
	return used
}

// StripAssetData returns copies of the group responses with every asset
// payload replaced by a placeholder, so replies stay loggable.
func StripAssetData(groupResponses map[string]*criadex.GroupSearchResponse) map[string]*criadex.GroupSearchResponse {
	stripped := make(map[string]*criadex.GroupSearchResponse, len(groupResponses))
	for name, response := range groupResponses {
		if response == nil {
			stripped[name] = nil
			continue
		}
		clone := *response
		clone.Assets = make([]criadex.Asset, len(response.Assets))
		for i, asset := range response.Assets {
			asset.Data = "<stripped>"
			clone.Assets[i] = asset
		}
		stripped[name] = &clone
	}
	return stripped
}

// EmbedAssetsInMessage rewrites markdown image references to inline
// <img> tags carrying the base64 payload. References use the hex form
// of the asset UUID.
func EmbedAssetsInMessage(text string, assets []criadex.Asset) string {
	for _, asset := range assets {
		id, err := uuid.Parse(asset.UUID)
		if err != nil {
			continue
		}
		hex := strings.ReplaceAll(id.String(), "-", "")

		pattern, err := regexp.Compile(`!\[.*?]\(` + hex + `\)`)
		if err != nil {
			continue
		}

		replacement := fmt.Sprintf(
			`<img id="%s" class="reply-asset" style="width: 100%%" src="data:image/png;base64,%s" alt="%s" />`,
			asset.UUID,
			url.PathEscape(asset.Data),
			asset.Description,
		)
		text = pattern.ReplaceAllString(text, replacement)
	}
	return text
}
