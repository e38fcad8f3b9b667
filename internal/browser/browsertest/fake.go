// Package browsertest содержит in-memory реализацию browser.Driver для тестов
// пагинации, извлечения и оркестрации без живого Chrome.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"airbnb-scraper/internal/browser"
)

type Node struct {
	Content string
	Attrs   map[string]string
	TextErr error

	ClickErr      error
	ForceClickErr error
	// OnClick вызывается после успешного клика, обычного или скриптового
	OnClick func(d *Driver)
}

// NewNode узел с текстом и атрибутами вида "href", "/rooms/1"
func NewNode(text string, attrs ...string) *Node {
	n := &Node{Content: text, Attrs: map[string]string{}}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attrs[attrs[i]] = attrs[i+1]
	}
	return n
}

func (n *Node) Text(ctx context.Context) (string, error) {
	if n.TextErr != nil {
		return "", n.TextErr
	}
	return n.Content, nil
}

func (n *Node) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := n.Attrs[name]
	return v, ok, nil
}

type Page struct {
	elements map[string][]*Node
	HTML     string
}

func NewPage() *Page {
	return &Page{elements: map[string][]*Node{}}
}

// Add добавляет узлы под селектор; повторный вызов дописывает
func (p *Page) Add(sel browser.Selector, nodes ...*Node) *Page {
	key := sel.String()
	p.elements[key] = append(p.elements[key], nodes...)
	return p
}

func (p *Page) Remove(sel browser.Selector) *Page {
	delete(p.elements, sel.String())
	return p
}

func (p *Page) WithHTML(html string) *Page {
	p.HTML = html
	return p
}

type Driver struct {
	mu sync.Mutex

	pages        map[string]*Page
	navigateErrs map[string]error
	current      *Page

	// CloseErr возвращается из Close (браузер уже умер)
	CloseErr error

	Navigations []string
	Clicks      int
	ForceClicks int
	Scrolls     int
	CloseCalls  int
}

func NewDriver() *Driver {
	return &Driver{
		pages:        map[string]*Page{},
		navigateErrs: map[string]error{},
		current:      NewPage(),
	}
}

func (d *Driver) AddPage(url string, p *Page) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pages[url] = p
	return d
}

func (d *Driver) FailNavigation(url string, err error) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigateErrs[url] = err
	return d
}

// Show переключает текущую страницу без навигации (клиентский рендер после клика)
func (d *Driver) Show(p *Page) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current = p
}

func (d *Driver) Current() *Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Navigations = append(d.Navigations, url)
	if err, ok := d.navigateErrs[url]; ok {
		return err
	}
	if p, ok := d.pages[url]; ok {
		d.current = p
	} else {
		d.current = NewPage()
	}
	return nil
}

func (d *Driver) FindAll(ctx context.Context, sel browser.Selector) ([]browser.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	found := d.current.elements[sel.String()]
	nodes := make([]browser.Node, 0, len(found))
	for _, n := range found {
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (d *Driver) Click(ctx context.Context, node browser.Node) error {
	n, err := asNode(node)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.Clicks++
	d.mu.Unlock()

	if n.ClickErr != nil {
		return n.ClickErr
	}
	if n.OnClick != nil {
		n.OnClick(d)
	}
	return nil
}

func (d *Driver) ForceClick(ctx context.Context, node browser.Node) error {
	n, err := asNode(node)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.ForceClicks++
	d.mu.Unlock()

	if n.ForceClickErr != nil {
		return n.ForceClickErr
	}
	if n.OnClick != nil {
		n.OnClick(d)
	}
	return nil
}

func (d *Driver) ScrollIntoView(ctx context.Context, node browser.Node) error {
	if _, err := asNode(node); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Scrolls++
	return nil
}

func (d *Driver) HTML(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.HTML, nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCalls++
	return d.CloseErr
}

func (d *Driver) Closed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.CloseCalls
}

func asNode(node browser.Node) (*Node, error) {
	n, ok := node.(*Node)
	if !ok {
		return nil, fmt.Errorf("unexpected node type %T", node)
	}
	return n, nil
}

var ErrLaunch = errors.New("chrome not found")

// Launcher отдаёт драйверы из Factory; первые FailFirst запусков падают с Err
type Launcher struct {
	mu sync.Mutex

	Factory   func() *Driver
	Err       error
	FailFirst int

	Launches int
	Drivers  []*Driver
}

func NewLauncher(factory func() *Driver) *Launcher {
	return &Launcher{Factory: factory}
}

func (l *Launcher) Launch(ctx context.Context) (browser.Driver, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.Launches++
	if l.Err != nil && (l.FailFirst == 0 || l.Launches <= l.FailFirst) {
		return nil, l.Err
	}

	d := l.Factory()
	l.Drivers = append(l.Drivers, d)
	return d, nil
}
