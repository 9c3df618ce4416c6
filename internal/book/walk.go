package book

// VisitFunc receives each chapter together with its address. The address
// slice is reused between calls; clone it to keep it.
type VisitFunc func(addr Address, ch *Chapter) error

// Walk visits every chapter depth-first in pre-order: a chapter is visited
// before its sub-items, sub-items before the next sibling. Separators and
// part titles occupy an index but are not visited. The walk is synchronous;
// the visit function may mutate the chapter it is handed.
func (b *Book) Walk(fn VisitFunc) error {
	return walkItems(b.Sections, Address{}, fn)
}

func walkItems(items []Item, prefix Address, fn VisitFunc) error {
	for i := range items {
		ch := items[i].Chapter
		if ch == nil {
			continue
		}
		addr := append(prefix, i)
		if err := fn(addr, ch); err != nil {
			return err
		}
		if err := walkItems(ch.SubItems, addr, fn); err != nil {
			return err
		}
	}
	return nil
}
