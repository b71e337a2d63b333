package catalog

import "github.com/demonfiddler/evidence-engine-sub001/model"

// topicTree nests a flat page of topics under their parents. Topics whose
// parent is not on the page become roots. Sibling order is preserved and the
// page's counts are left as the server reported them.
func topicTree(page *model.Page[model.Topic]) *model.Page[model.Topic] {
	if page == nil {
		return nil
	}
	onPage := make(map[string]bool, len(page.Content))
	for _, t := range page.Content {
		onPage[t.ID] = true
	}
	children := make(map[string][]model.Topic)
	var roots []model.Topic
	for _, t := range page.Content {
		if t.ParentID != "" && t.ParentID != t.ID && onPage[t.ParentID] {
			children[t.ParentID] = append(children[t.ParentID], t)
			continue
		}
		roots = append(roots, t)
	}

	out := *page
	out.Content = make([]model.Topic, 0, len(roots))
	seen := make(map[string]bool, len(page.Content))
	for _, r := range roots {
		out.Content = append(out.Content, attach(r, children, seen))
	}
	// Parent cycles leave topics unreachable from any root.
	for _, t := range page.Content {
		if !seen[t.ID] {
			out.Content = append(out.Content, attach(t, children, seen))
		}
	}
	return &out
}

func attach(t model.Topic, children map[string][]model.Topic, seen map[string]bool) model.Topic {
	seen[t.ID] = true
	kids := children[t.ID]
	if len(kids) == 0 {
		return t
	}
	t.Children = make([]model.Topic, 0, len(kids))
	for _, k := range kids {
		if seen[k.ID] {
			continue
		}
		t.Children = append(t.Children, attach(k, children, seen))
	}
	return t
}

// findTopic searches the topic tree depth first.
func findTopic(page *model.Page[model.Topic], id string) (model.Topic, bool) {
	if page == nil || id == "" {
		return model.Topic{}, false
	}
	return findIn(page.Content, id)
}

func findIn(topics []model.Topic, id string) (model.Topic, bool) {
	for _, t := range topics {
		if t.ID == id {
			return t, true
		}
		if found, ok := findIn(t.Children, id); ok {
			return found, true
		}
	}
	return model.Topic{}, false
}
