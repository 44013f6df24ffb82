package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/entrhq/autofill/pkg/types"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// StaticPage is an in-memory page parsed with x/net/html. It applies the
// same labelling and grouping rules as the snapshot script and keeps form
// state in the parsed tree, so writes can be read back.
//
// Navigation between documents is driven by markup: a button with
// data-next="<name>", or a submit button inside a form with an action,
// loads the named document. Clicking or changing an element that carries
// data-reveals="<id>" removes the hidden attribute from that element, which
// models progressively disclosed fields. Read-only inputs ignore writes.
type StaticPage struct {
	mu      sync.Mutex
	sources map[string]string
	dir     string
	name    string
	doc     *html.Node
	seq     int
	closed  bool
}

// NewStaticPage creates a page showing the document source under name.
func NewStaticPage(name, source string) (*StaticPage, error) {
	p := &StaticPage{sources: make(map[string]string)}
	if err := p.AddDocument(name, source); err != nil {
		return nil, err
	}
	if err := p.load(name); err != nil {
		return nil, err
	}
	return p, nil
}

// LoadStaticFile opens an HTML file. Documents it navigates to are read
// from the same directory on demand.
func LoadStaticFile(path string) (*StaticPage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	p, err := NewStaticPage(filepath.Base(path), string(data))
	if err != nil {
		return nil, err
	}
	p.dir = filepath.Dir(path)
	return p, nil
}

// AddDocument registers a document that buttons can navigate to.
func (p *StaticPage) AddDocument(name, source string) error {
	if _, err := html.Parse(strings.NewReader(source)); err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[name] = source
	return nil
}

// Navigate loads a registered document, as a link or redirect would.
func (p *StaticPage) Navigate(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPageUnavailable
	}
	return p.load(name)
}

// URL returns the name of the document currently shown.
func (p *StaticPage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name
}

func (p *StaticPage) load(name string) error {
	src, ok := p.sources[name]
	if !ok && p.dir != "" {
		data, err := os.ReadFile(filepath.Join(p.dir, filepath.Clean("/"+name)))
		if err != nil {
			return fmt.Errorf("%w: load %s: %v", ErrPageUnavailable, name, err)
		}
		src, ok = string(data), true
		p.sources[name] = src
	}
	if !ok {
		return fmt.Errorf("%w: unknown document %q", ErrPageUnavailable, name)
	}
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return fmt.Errorf("failed to parse HTML: %w", err)
	}
	p.doc, p.name, p.seq = doc, name, 0
	return nil
}

// Snapshot implements Page.
func (p *StaticPage) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPageUnavailable
	}

	snap := &Snapshot{URL: p.name, Title: strings.TrimSpace(textContent(find(p.doc, isTag(atom.Title))))}
	groups := make(map[string]int)

	walk(p.doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		tag := n.DataAtom
		role := attr(n, "role")
		isControl := tag == atom.Input || tag == atom.Textarea || tag == atom.Select || role == "radio" || role == "checkbox"
		if !isControl {
			return
		}
		typ := ""
		if tag == atom.Input {
			typ = strings.ToLower(attr(n, "type"))
			if typ == "" {
				typ = "text"
			}
		}
		switch typ {
		case "hidden", "submit", "button", "reset", "image", "file":
			return
		}

		if typ == "radio" || typ == "checkbox" || role == "radio" || role == "checkbox" {
			p.addChoice(snap, groups, n, typ, role)
			return
		}

		e := Element{
			ID:       p.stamp(n),
			Tag:      n.Data,
			Type:     typ,
			Kind:     types.KindShortText,
			Label:    controlLabel(p.doc, n),
			Name:     attr(n, "name"),
			Visible:  visible(n),
			Disabled: disabled(n),
			Required: required(n),
		}
		switch tag {
		case atom.Select:
			e.Kind = types.KindDropdown
			if hasAttr(n, "multiple") {
				e.Kind = types.KindMultiChoice
			}
			var selected []string
			for _, o := range options(n) {
				opt := types.Option{Label: clean(textContent(o)), Value: optionValue(o), Selected: hasAttr(o, "selected")}
				e.Options = append(e.Options, opt)
				if opt.Selected {
					selected = append(selected, opt.Label)
				}
			}
			e.Value = strings.Join(selected, ", ")
		case atom.Textarea:
			e.Kind = types.KindLongText
			e.Value = textContent(n)
		default:
			e.Value = attr(n, "value")
		}
		snap.Elements = append(snap.Elements, e)
	})

	walk(p.doc, func(n *html.Node) {
		if !isButton(n) {
			return
		}
		label := clean(attr(n, "aria-label"))
		if label == "" {
			label = clean(textContent(n))
		}
		if label == "" {
			label = clean(attr(n, "value"))
		}
		if label == "" {
			return
		}
		snap.Buttons = append(snap.Buttons, Button{ID: p.stamp(n), Label: label, Visible: visible(n), Disabled: disabled(n)})
	})

	text := clean(visibleText(find(p.doc, isTag(atom.Body))))
	if len(text) > MaxTextLength {
		text = text[:MaxTextLength]
	}
	snap.Text = text
	return snap, nil
}

func (p *StaticPage) addChoice(snap *Snapshot, groups map[string]int, n *html.Node, typ, role string) {
	radio := typ == "radio" || role == "radio"
	var container *html.Node
	var key string
	if n.DataAtom == atom.Input && attr(n, "name") != "" {
		form := ""
		if f := closest(n, isTag(atom.Form)); f != nil {
			form = p.stamp(f)
		}
		key = "n:" + form + ":" + attr(n, "name")
	} else {
		container = closest(n.Parent, isGroupContainer)
		if container != nil {
			key = "c:" + p.stamp(container)
		} else {
			key = "e:" + p.stamp(n)
		}
	}

	id := p.stamp(n)
	checked := isChecked(n)
	label := ownLabel(p.doc, n)
	if label == "" {
		label = clean(attr(n, "data-value"))
	}
	if label == "" {
		label = clean(attr(n, "value"))
	}

	idx, ok := groups[key]
	if !ok {
		kind, gtype := types.KindMultiChoice, "checkbox"
		if radio {
			kind, gtype = types.KindSingleChoice, "radio"
		}
		snap.Elements = append(snap.Elements, Element{
			ID:       id,
			Tag:      n.Data,
			Type:     gtype,
			Kind:     kind,
			Label:    groupLabel(p.doc, n, container),
			Name:     attr(n, "name"),
			Disabled: true,
		})
		idx = len(snap.Elements) - 1
		groups[key] = idx
	}

	g := &snap.Elements[idx]
	g.Visible = g.Visible || visible(n) || visible(closest(n, isTag(atom.Label)))
	g.Disabled = g.Disabled && disabled(n)
	g.Required = g.Required || required(n) || (container != nil && required(container))
	value := attr(n, "value")
	if value == "" {
		value = attr(n, "data-value")
	}
	g.Options = append(g.Options, types.Option{ID: id, Label: label, Value: value, Selected: checked})
	if checked {
		if g.Value != "" {
			g.Value += ", "
		}
		g.Value += label
	}
}

func (p *StaticPage) stamp(n *html.Node) string {
	if id := attr(n, IDAttribute); id != "" {
		return id
	}
	p.seq++
	id := "af-" + strconv.Itoa(p.seq)
	setAttr(n, IDAttribute, id)
	return id
}

func (p *StaticPage) lookup(id string) (*html.Node, error) {
	if p.closed {
		return nil, ErrPageUnavailable
	}
	n := find(p.doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && attr(n, IDAttribute) == id
	})
	if n == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrElementNotFound)
	}
	return n, nil
}

// SetValue implements Page.
func (p *StaticPage) SetValue(ctx context.Context, id, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.lookup(id)
	if err != nil {
		return err
	}
	if disabled(n) {
		return fmt.Errorf("fill %s: element is disabled", id)
	}
	if hasAttr(n, "readonly") {
		return nil
	}
	switch n.DataAtom {
	case atom.Textarea:
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			n.RemoveChild(c)
			c = next
		}
		n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
	case atom.Input:
		if maxLen, err := strconv.Atoi(attr(n, "maxlength")); err == nil && maxLen >= 0 && len(value) > maxLen {
			value = value[:maxLen]
		}
		setAttr(n, "value", value)
	default:
		return fmt.Errorf("fill %s: <%s> is not a text control", id, n.Data)
	}
	p.reveal(n)
	return nil
}

// Select implements Page.
func (p *StaticPage) Select(ctx context.Context, id, option string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.lookup(id)
	if err != nil {
		return err
	}
	if n.DataAtom != atom.Select {
		return fmt.Errorf("select %s: <%s> is not a select", id, n.Data)
	}
	want := clean(option)
	multiple := hasAttr(n, "multiple")
	var hit *html.Node
	for _, o := range options(n) {
		if clean(textContent(o)) == want {
			hit = o
			break
		}
	}
	if hit == nil {
		return fmt.Errorf("select %s: no option %q", id, option)
	}
	if !multiple {
		for _, o := range options(n) {
			delAttr(o, "selected")
		}
	}
	setAttr(hit, "selected", "")
	p.reveal(n)
	p.reveal(hit)
	return nil
}

// ReadValue implements Page.
func (p *StaticPage) ReadValue(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.lookup(id)
	if err != nil {
		return "", err
	}
	switch n.DataAtom {
	case atom.Select:
		var selected []string
		for _, o := range options(n) {
			if hasAttr(o, "selected") {
				selected = append(selected, clean(textContent(o)))
			}
		}
		return strings.Join(selected, ", "), nil
	case atom.Textarea:
		return textContent(n), nil
	default:
		return attr(n, "value"), nil
	}
}

// Click implements Page.
func (p *StaticPage) Click(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.lookup(id)
	if err != nil {
		return err
	}
	if disabled(n) {
		return fmt.Errorf("click %s: element is disabled", id)
	}

	typ := strings.ToLower(attr(n, "type"))
	role := attr(n, "role")
	switch {
	case typ == "radio" || role == "radio":
		p.checkRadio(n)
	case typ == "checkbox":
		toggleAttr(n, "checked")
	case role == "checkbox":
		if attr(n, "aria-checked") == "true" {
			setAttr(n, "aria-checked", "false")
		} else {
			setAttr(n, "aria-checked", "true")
		}
	case isButton(n):
		p.reveal(n)
		if target := p.navigationTarget(n); target != "" {
			return p.load(target)
		}
		return nil
	}
	p.reveal(n)
	return nil
}

func (p *StaticPage) checkRadio(n *html.Node) {
	var peers []*html.Node
	if n.DataAtom == atom.Input && attr(n, "name") != "" {
		form := closest(n, isTag(atom.Form))
		name := attr(n, "name")
		walk(p.doc, func(c *html.Node) {
			if c.DataAtom == atom.Input && attr(c, "name") == name && closest(c, isTag(atom.Form)) == form {
				peers = append(peers, c)
			}
		})
	} else if container := closest(n.Parent, isGroupContainer); container != nil {
		walk(container, func(c *html.Node) {
			if attr(c, "role") == "radio" {
				peers = append(peers, c)
			}
		})
	}
	for _, c := range peers {
		if c.DataAtom == atom.Input {
			delAttr(c, "checked")
		} else {
			setAttr(c, "aria-checked", "false")
		}
	}
	if n.DataAtom == atom.Input {
		setAttr(n, "checked", "")
	} else {
		setAttr(n, "aria-checked", "true")
	}
}

func (p *StaticPage) navigationTarget(n *html.Node) string {
	if next := attr(n, "data-next"); next != "" {
		return next
	}
	typ := strings.ToLower(attr(n, "type"))
	submit := typ == "submit" || (n.DataAtom == atom.Button && typ == "")
	if !submit {
		return ""
	}
	if form := closest(n, isTag(atom.Form)); form != nil {
		return attr(form, "action")
	}
	return ""
}

func (p *StaticPage) reveal(n *html.Node) {
	target := attr(n, "data-reveals")
	if target == "" {
		return
	}
	if t := find(p.doc, func(c *html.Node) bool { return c.Type == html.ElementNode && attr(c, "id") == target }); t != nil {
		delAttr(t, "hidden")
	}
}

// Checked implements Page.
func (p *StaticPage) Checked(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	n, err := p.lookup(id)
	if err != nil {
		return false, err
	}
	return isChecked(n), nil
}

// Close implements Page. Every later call fails with ErrPageUnavailable.
func (p *StaticPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// DOM helpers

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func delAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

func toggleAttr(n *html.Node, key string) {
	if hasAttr(n, key) {
		delAttr(n, key)
	} else {
		setAttr(n, key, "")
	}
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func find(n *html.Node, pred func(*html.Node) bool) *html.Node {
	var hit *html.Node
	walk(n, func(c *html.Node) {
		if hit == nil && pred(c) {
			hit = c
		}
	})
	return hit
}

func closest(n *html.Node, pred func(*html.Node) bool) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && pred(n) {
			return n
		}
	}
	return nil
}

func isTag(a atom.Atom) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

func isGroupContainer(n *html.Node) bool {
	switch attr(n, "role") {
	case "radiogroup", "group", "listitem":
		return true
	}
	return false
}

func isButton(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.DataAtom == atom.Button || attr(n, "role") == "button" {
		return true
	}
	if n.DataAtom == atom.Input {
		switch strings.ToLower(attr(n, "type")) {
		case "submit", "button", "image":
			return true
		}
	}
	return false
}

func isChecked(n *html.Node) bool {
	if n.DataAtom == atom.Input {
		return hasAttr(n, "checked")
	}
	return attr(n, "aria-checked") == "true"
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	walk(sel, func(c *html.Node) {
		if c.Type == html.ElementNode && c.DataAtom == atom.Option {
			out = append(out, c)
		}
	})
	return out
}

func optionValue(o *html.Node) string {
	if hasAttr(o, "value") {
		return attr(o, "value")
	}
	return clean(textContent(o))
}

func hiddenStyle(n *html.Node) bool {
	style := strings.ReplaceAll(strings.ToLower(attr(n, "style")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func visible(n *html.Node) bool {
	if n == nil {
		return false
	}
	for c := n; c != nil; c = c.Parent {
		if c.Type != html.ElementNode {
			continue
		}
		if hasAttr(c, "hidden") || hiddenStyle(c) {
			return false
		}
		if c.DataAtom == atom.Input && strings.EqualFold(attr(c, "type"), "hidden") {
			return false
		}
	}
	return true
}

func disabled(n *html.Node) bool {
	if hasAttr(n, "disabled") || attr(n, "aria-disabled") == "true" {
		return true
	}
	fs := closest(n.Parent, isTag(atom.Fieldset))
	return fs != nil && hasAttr(fs, "disabled")
}

func required(n *html.Node) bool {
	return hasAttr(n, "required") || attr(n, "aria-required") == "true"
}

func clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

// labelText is the text of a label without the text of controls nested in
// it, so a wrapping label does not absorb a select's options.
func labelText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.Select, atom.Textarea, atom.Option, atom.Script, atom.Style:
				return
			}
		}
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			visit(k)
		}
	}
	visit(n)
	return clean(b.String())
}

func visibleText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.Script, atom.Style, atom.Head, atom.Noscript, atom.Template:
				return
			}
			if hasAttr(c, "hidden") || hiddenStyle(c) {
				return
			}
		}
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			b.WriteByte(' ')
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			visit(k)
		}
	}
	if n != nil {
		visit(n)
	}
	return b.String()
}

func byID(doc *html.Node, id string) *html.Node {
	return find(doc, func(c *html.Node) bool {
		return c.Type == html.ElementNode && attr(c, "id") == id
	})
}

func ownLabel(doc, n *html.Node) string {
	if l := clean(attr(n, "aria-label")); l != "" {
		return l
	}
	if by := attr(n, "aria-labelledby"); by != "" {
		var parts []string
		for _, id := range strings.Fields(by) {
			if ref := byID(doc, id); ref != nil {
				parts = append(parts, clean(textContent(ref)))
			}
		}
		if t := strings.Join(parts, " "); t != "" {
			return t
		}
	}
	if id := attr(n, "id"); id != "" {
		l := find(doc, func(c *html.Node) bool {
			return c.Type == html.ElementNode && c.DataAtom == atom.Label && attr(c, "for") == id
		})
		if l != nil {
			return labelText(l)
		}
	}
	if wrap := closest(n.Parent, isTag(atom.Label)); wrap != nil {
		return labelText(wrap)
	}
	return ""
}

func heading(n *html.Node) string {
	item := closest(n, func(c *html.Node) bool { return attr(c, "role") == "listitem" })
	if item == nil {
		return ""
	}
	h := find(item, func(c *html.Node) bool { return c.Type == html.ElementNode && attr(c, "role") == "heading" })
	return clean(textContent(h))
}

func controlLabel(doc, n *html.Node) string {
	for _, l := range []string{ownLabel(doc, n), heading(n), clean(attr(n, "placeholder")), clean(attr(n, "name"))} {
		if l != "" {
			return l
		}
	}
	return ""
}

func groupLabel(doc, n, container *html.Node) string {
	if container != nil {
		if t := ownLabel(doc, container); t != "" {
			return t
		}
	}
	if fs := closest(n, isTag(atom.Fieldset)); fs != nil {
		if lg := find(fs, isTag(atom.Legend)); lg != nil {
			return clean(textContent(lg))
		}
	}
	if h := heading(n); h != "" {
		return h
	}
	return clean(attr(n, "name"))
}
