package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

const (
	jsText           = `function() { return (this.innerText || this.textContent || ""); }`
	jsForceClick     = `function() { this.click(); return true; }`
	jsScrollIntoView = `function() { this.scrollIntoView({block: "center"}); return true; }`
)

// ChromedpLauncher альтернативный драйвер (browser.driver: chromedp)
type ChromedpLauncher struct {
	opts Options
}

func NewChromedpLauncher(opts Options) *ChromedpLauncher {
	return &ChromedpLauncher{opts: opts}
}

func (c *ChromedpLauncher) Launch(ctx context.Context) (Driver, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if c.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(c.opts.ChromePath))
	}
	if c.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(c.opts.UserAgent))
	}
	if c.opts.WindowWidth > 0 && c.opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(c.opts.WindowWidth, c.opts.WindowHeight))
	}

	// Браузер живёт дольше ctx запуска, поэтому аллокатор от Background
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	d := &chromedpDriver{ctx: browserCtx, cancelBrowser: cancelBrowser, cancelAlloc: cancelAlloc}

	if err := ctx.Err(); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}

	// Первый Run аллоцирует браузер и привязывает его к browserCtx,
	// поэтому здесь нельзя передавать производный контекст с отменой
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return d, nil
}

type chromedpDriver struct {
	ctx           context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

type chromedpNode struct {
	driver *chromedpDriver
	node   *cdp.Node
}

func (n *chromedpNode) Text(ctx context.Context) (string, error) {
	var text string
	if err := n.driver.callOn(ctx, n.node, jsText, &text); err != nil {
		return "", err
	}
	return text, nil
}

func (n *chromedpNode) Attribute(ctx context.Context, name string) (string, bool, error) {
	var value *string
	fn := `function() { return this.getAttribute(` + strconv.Quote(name) + `); }`
	if err := n.driver.callOn(ctx, n.node, fn, &value); err != nil {
		return "", false, err
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

// run выполняет действия во вкладке, прерываясь по отмене ctx вызывающего
func (d *chromedpDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (d *chromedpDriver) callOn(ctx context.Context, node *cdp.Node, fn string, res interface{}) error {
	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(node.BackendNodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		ret, exc, err := runtime.CallFunctionOn(fn).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		if res == nil || ret == nil || len(ret.Value) == 0 {
			return nil
		}
		return json.Unmarshal([]byte(ret.Value), res)
	}))
}

func (d *chromedpDriver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (d *chromedpDriver) FindAll(ctx context.Context, sel Selector) ([]Node, error) {
	opts := []chromedp.QueryOption{chromedp.AtLeast(0)}
	if sel.Kind == XPath {
		opts = append(opts, chromedp.BySearch)
	} else {
		opts = append(opts, chromedp.ByQueryAll)
	}

	var found []*cdp.Node
	if err := d.run(ctx, chromedp.Nodes(sel.Value, &found, opts...)); err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(found))
	for _, n := range found {
		nodes = append(nodes, &chromedpNode{driver: d, node: n})
	}
	return nodes, nil
}

func (d *chromedpDriver) Click(ctx context.Context, node Node) error {
	n, err := asChromedpNode(node)
	if err != nil {
		return err
	}
	return d.run(ctx, chromedp.MouseClickNode(n.node))
}

func (d *chromedpDriver) ForceClick(ctx context.Context, node Node) error {
	n, err := asChromedpNode(node)
	if err != nil {
		return err
	}
	return d.callOn(ctx, n.node, jsForceClick, nil)
}

func (d *chromedpDriver) ScrollIntoView(ctx context.Context, node Node) error {
	n, err := asChromedpNode(node)
	if err != nil {
		return err
	}
	return d.callOn(ctx, n.node, jsScrollIntoView, nil)
}

func (d *chromedpDriver) HTML(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.Evaluate(`document.documentElement.outerHTML`, &html)); err != nil {
		return "", err
	}
	return html, nil
}

func (d *chromedpDriver) Close() error {
	err := chromedp.Cancel(d.ctx)
	d.cancelBrowser()
	d.cancelAlloc()
	return err
}

func asChromedpNode(node Node) (*chromedpNode, error) {
	n, ok := node.(*chromedpNode)
	if !ok {
		return nil, fmt.Errorf("node %T does not belong to chromedp driver", node)
	}
	return n, nil
}
