package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Options общие параметры запуска для всех драйверов
type Options struct {
	ChromePath   string
	Headless     bool
	UserAgent    string
	WindowWidth  int
	WindowHeight int
}

type RodLauncher struct {
	opts Options
}

func NewRodLauncher(opts Options) *RodLauncher {
	return &RodLauncher{opts: opts}
}

func (r *RodLauncher) Launch(ctx context.Context) (Driver, error) {
	l := launcher.New().
		Context(ctx).
		Headless(r.opts.Headless).
		Set("disable-blink-features", "AutomationControlled")
	if r.opts.ChromePath != "" {
		l = l.Bin(r.opts.ChromePath)
	}
	if r.opts.UserAgent != "" {
		l = l.Set("user-agent", r.opts.UserAgent)
	}
	if r.opts.WindowWidth > 0 && r.opts.WindowHeight > 0 {
		l = l.Set("window-size", fmt.Sprintf("%d,%d", r.opts.WindowWidth, r.opts.WindowHeight))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &rodDriver{launcher: l, browser: b, page: page}, nil
}

type rodDriver struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
}

type rodNode struct {
	el *rod.Element
}

func (n *rodNode) Text(ctx context.Context) (string, error) {
	return n.el.Context(ctx).Text()
}

func (n *rodNode) Attribute(ctx context.Context, name string) (string, bool, error) {
	value, err := n.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, err
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (d *rodDriver) Navigate(ctx context.Context, url string) error {
	page := d.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	// Navigate у rod не ждёт load, в отличие от chromedp.Navigate
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (d *rodDriver) FindAll(ctx context.Context, sel Selector) ([]Node, error) {
	page := d.page.Context(ctx)

	var (
		elements rod.Elements
		err      error
	)
	switch sel.Kind {
	case XPath:
		elements, err = page.ElementsX(sel.Value)
	default:
		elements, err = page.Elements(sel.Value)
	}
	if err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(elements))
	for _, el := range elements {
		nodes = append(nodes, &rodNode{el: el})
	}
	return nodes, nil
}

func (d *rodDriver) Click(ctx context.Context, node Node) error {
	n, err := asRodNode(node)
	if err != nil {
		return err
	}
	return n.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1)
}

func (d *rodDriver) ForceClick(ctx context.Context, node Node) error {
	n, err := asRodNode(node)
	if err != nil {
		return err
	}
	_, err = n.el.Context(ctx).Eval(`() => this.click()`)
	return err
}

func (d *rodDriver) ScrollIntoView(ctx context.Context, node Node) error {
	n, err := asRodNode(node)
	if err != nil {
		return err
	}
	return n.el.Context(ctx).ScrollIntoView()
}

func (d *rodDriver) HTML(ctx context.Context) (string, error) {
	return d.page.Context(ctx).HTML()
}

func (d *rodDriver) Close() error {
	err := d.browser.Close()
	d.launcher.Kill()
	d.launcher.Cleanup()
	return err
}

func asRodNode(node Node) (*rodNode, error) {
	n, ok := node.(*rodNode)
	if !ok {
		return nil, fmt.Errorf("node %T does not belong to rod driver", node)
	}
	return n, nil
}
