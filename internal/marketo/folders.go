package marketo

import (
	"context"
	"errors"
)

// ResolveFolderPath walks a folder's parent chain and returns the path from
// the root folder down to the folder itself.
//
// Lookups are tolerant: a missing folder anywhere in the chain resolves to
// an empty path rather than an error, and callers render that as an unknown
// location. A visited set terminates the walk if the provider ever reports a
// cyclic parent chain. Resolved paths are memoized per client, so sibling
// templates in the same folder do not refetch the chain.
func (c *Client) ResolveFolderPath(ctx context.Context, folderID int) ([]Folder, error) {
	if folderID == 0 {
		return nil, nil
	}

	c.mu.Lock()
	memo, ok := c.folderMemo[folderID]
	c.mu.Unlock()
	if ok {
		return memo, nil
	}

	visited := make(map[int]bool)
	var chain []Folder // leaf first

	id := folderID
	for id != 0 && !visited[id] {
		visited[id] = true

		folder, err := c.GetFolder(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}

		chain = append(chain, *folder)
		if folder.Parent == nil {
			break
		}
		id = folder.Parent.ID
	}

	// Reverse into root-first order.
	path := make([]Folder, 0, len(chain))
	for i := len(chain) - 1; i >= 0; i-- {
		path = append(path, chain[i])
	}

	c.mu.Lock()
	c.folderMemo[folderID] = path
	c.mu.Unlock()
	return path, nil
}
