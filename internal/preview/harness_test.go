package preview

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/grovetools/storyview/internal/render"
	"github.com/grovetools/storyview/pkg/channel"
	"github.com/grovetools/storyview/pkg/index"
	"github.com/grovetools/storyview/pkg/models"
	"github.com/grovetools/storyview/pkg/selection"
	"github.com/grovetools/storyview/pkg/store"
	"github.com/stretchr/testify/require"
)

// gatedLoader serves modules from memory. A held path blocks Load until released.
type gatedLoader struct {
	mu      sync.Mutex
	files   map[string]*models.CSFFile
	gates   map[string]chan struct{}
	waiting map[string]int
	failing map[string]error
	loads   int
	delay   func(path string) time.Duration
}

func newGatedLoader(files ...*models.CSFFile) *gatedLoader {
	l := &gatedLoader{
		files:   make(map[string]*models.CSFFile),
		gates:   make(map[string]chan struct{}),
		waiting: make(map[string]int),
		failing: make(map[string]error),
	}
	for _, f := range files {
		l.files[f.ImportPath] = f
	}
	return l
}

func (l *gatedLoader) Load(ctx context.Context, path string) (*models.CSFFile, error) {
	l.mu.Lock()
	l.loads++
	gate := l.gates[path]
	delay := l.delay
	if gate != nil {
		l.waiting[path]++
	}
	l.mu.Unlock()

	if delay != nil {
		time.Sleep(delay(path))
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.failing[path]; err != nil {
		return nil, err
	}
	f, ok := l.files[path]
	if !ok {
		return nil, fmt.Errorf("no module at %s", path)
	}
	return f, nil
}

func (l *gatedLoader) hold(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gates[path] = make(chan struct{})
}

func (l *gatedLoader) release(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gate, ok := l.gates[path]; ok {
		close(gate)
		delete(l.gates, path)
	}
}

func (l *gatedLoader) waitingOn(path string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.waiting[path]
}

func (l *gatedLoader) replace(f *models.CSFFile) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.files[f.ImportPath] = f
}

// recordingView records every display instruction in order.
type recordingView struct {
	mu       sync.Mutex
	calls    []string
	errors   []error
	elements int
}

func (v *recordingView) record(call string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, call)
}

func (v *recordingView) ShowPreparingStory(immediate bool) {
	v.record(fmt.Sprintf("preparingStory(%t)", immediate))
}
func (v *recordingView) ShowPreparingDocs()     { v.record("preparingDocs") }
func (v *recordingView) ShowMain()              { v.record("main") }
func (v *recordingView) ShowStoryDuringRender() { v.record("storyDuringRender") }
func (v *recordingView) ShowNoPreview()         { v.record("noPreview") }

func (v *recordingView) ShowErrorDisplay(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, "error")
	v.errors = append(v.errors, err)
}

func (v *recordingView) PrepareForStory(story *models.Story) render.Element {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.elements++
	v.calls = append(v.calls, "prepareForStory:"+story.ID)
	return fmt.Sprintf("main:%s#%d", story.ID, v.elements)
}

func (v *recordingView) PrepareForDocs() render.Element {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.elements++
	v.calls = append(v.calls, "prepareForDocs")
	return fmt.Sprintf("main:docs#%d", v.elements)
}

func (v *recordingView) snapshot() ([]string, []error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.calls...), append([]error(nil), v.errors...)
}

// recordingRenderer is a framework adapter that tracks what is mounted where.
// Main-slot elements are prefixed "main:".
type recordingRenderer struct {
	mu         sync.Mutex
	mounted    map[render.Element]string
	maxMain    int
	mounts     []string
	disposals  int
	failWith   map[string]error
	userErrors map[string]string
}

func newRecordingRenderer() *recordingRenderer {
	return &recordingRenderer{
		mounted:    make(map[render.Element]string),
		failWith:   make(map[string]error),
		userErrors: make(map[string]string),
	}
}

func (r *recordingRenderer) render(ctx context.Context, rc *render.RenderContext, el render.Element) (render.Disposer, error) {
	r.mu.Lock()
	if err := r.failWith[rc.Story.ID]; err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if title, ok := r.userErrors[rc.Story.ID]; ok {
		r.mu.Unlock()
		rc.ShowError(title, "the story returned nothing")
		return nil, nil
	}
	r.mounted[el] = rc.Story.ID
	r.mounts = append(r.mounts, rc.Story.ID)
	if n := r.mainCountLocked(); n > r.maxMain {
		r.maxMain = n
	}
	r.mu.Unlock()

	rc.ShowMain()
	return func(context.Context, render.TeardownOptions) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.mounted, el)
		r.disposals++
		return nil
	}, nil
}

func (r *recordingRenderer) mainCountLocked() int {
	n := 0
	for el := range r.mounted {
		if strings.HasPrefix(fmt.Sprint(el), "main:") {
			n++
		}
	}
	return n
}

type renderStats struct {
	mounted   []string
	mounts    []string
	maxMain   int
	disposals int
}

func (r *recordingRenderer) stats() renderStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	var mounted []string
	for el, id := range r.mounted {
		if strings.HasPrefix(fmt.Sprint(el), "main:") {
			mounted = append(mounted, id)
		}
	}
	return renderStats{
		mounted:   mounted,
		mounts:    append([]string(nil), r.mounts...),
		maxMain:   r.maxMain,
		disposals: r.disposals,
	}
}

// recordingDocs renders docs pages and mounts each component story inline.
// An in-place rerender keeps the inline stories it already mounted.
type recordingDocs struct {
	mu        sync.Mutex
	renders   []bool
	contexts  []bool
	disposals int
	mounted   int
	inline    map[render.Element][]func(context.Context) error
}

func (d *recordingDocs) render(ctx context.Context, dc *render.DocsContext, el render.Element) (render.Disposer, error) {
	d.mu.Lock()
	if d.inline == nil {
		d.inline = make(map[render.Element][]func(context.Context) error)
	}
	_, inPlace := d.inline[el]
	d.renders = append(d.renders, dc.ForceRemount)
	d.contexts = append(d.contexts, dc.StoryContext != nil)
	d.mu.Unlock()

	if !inPlace {
		var releases []func(context.Context) error
		for _, s := range dc.ComponentStories {
			if dc.RenderStoryToElement != nil {
				releases = append(releases, dc.RenderStoryToElement(ctx, s, "inline:"+s.ID))
			}
		}
		d.mu.Lock()
		d.inline[el] = releases
		d.mounted++
		d.mu.Unlock()
	}
	dc.ShowMain()

	return func(ctx context.Context, _ render.TeardownOptions) error {
		d.mu.Lock()
		releases, ok := d.inline[el]
		delete(d.inline, el)
		d.mu.Unlock()
		if !ok {
			return nil
		}
		for _, release := range releases {
			if err := release(ctx); err != nil {
				return err
			}
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		d.disposals++
		d.mounted--
		return nil
	}, nil
}

// withStoryContext reports, per docs render, whether a story context was passed.
func (d *recordingDocs) withStoryContext() []bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.contexts...)
}

func (d *recordingDocs) snapshot() (renders []bool, disposals, mounted int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]bool(nil), d.renders...), d.disposals, d.mounted
}

type harness struct {
	t        *testing.T
	ch       *channel.Channel
	events   <-chan channel.Event
	view     *recordingView
	renderer *recordingRenderer
	docs     *recordingDocs
	loader   *gatedLoader
	store    *store.StoryStore
	p        *Orchestrator
	index    *index.StoryIndex
}

func module(title string, exports ...string) *models.CSFFile {
	f := &models.CSFFile{
		ImportPath: "./" + strings.ToLower(title) + ".stories.yaml",
		Meta:       models.ComponentAnnotations{Title: title, Args: models.Args{"label": title}},
	}
	for _, e := range exports {
		f.Stories = append(f.Stories, models.StoryAnnotations{ExportName: e})
	}
	return f
}

func indexFor(t *testing.T, files ...*models.CSFFile) *index.StoryIndex {
	t.Helper()
	var entries []index.Entry
	for _, f := range files {
		fe, err := store.IndexEntries(f)
		require.NoError(t, err)
		entries = append(entries, fe...)
	}
	return index.New(entries...)
}

func newHarness(t *testing.T, spec *models.SelectionSpecifier, features Features, files ...*models.CSFFile) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ch:       channel.New(),
		view:     &recordingView{},
		renderer: newRecordingRenderer(),
		docs:     &recordingDocs{},
		loader:   newGatedLoader(files...),
		index:    indexFor(t, files...),
	}
	h.events = h.ch.SubscribeBuffered(4096)
	h.store = store.NewStoryStore(h.loader)
	h.p = New(h.ch, h.view, selection.New(spec), h.store, Options{
		Features: features,
		RenderFn: h.renderer.render,
		DocsFn:   h.docs.render,
	})
	t.Cleanup(func() { _ = h.p.Close(context.Background()) })
	return h
}

func (h *harness) initOptions() InitOptions {
	return InitOptions{
		GetProjectAnnotations: func(context.Context) (*models.ProjectAnnotations, error) {
			return &models.ProjectAnnotations{
				Globals:     models.Globals{"theme": "light"},
				GlobalTypes: models.ArgTypes{"locale": {Name: "locale"}},
			}, nil
		},
		GetStoryIndex: func(context.Context) (*index.StoryIndex, error) { return h.index, nil },
	}
}

func (h *harness) initialize() {
	h.t.Helper()
	require.NoError(h.t, h.p.Initialize(context.Background(), h.initOptions()))
}

// drain returns every event published so far.
func (h *harness) drain() []channel.Event {
	var out []channel.Event
	for {
		select {
		case e := <-h.events:
			out = append(out, e)
		default:
			return out
		}
	}
}

// lifecycle keeps only orchestrator-level events, rendered as "type:story".
func lifecycle(events []channel.Event) []string {
	var out []string
	for _, e := range events {
		switch e.Type {
		case channel.EventStoryRenderPhaseChanged, channel.EventStoryRendered, channel.EventDocsRendered,
			channel.EventSetGlobals, channel.EventSetStories:
			continue
		}
		out = append(out, string(e.Type)+":"+e.StoryID)
	}
	return out
}

func ofType(events []channel.Event, t channel.EventType) []channel.Event {
	var out []channel.Event
	for _, e := range events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func contains(calls []string, call string) bool {
	for _, c := range calls {
		if c == call {
			return true
		}
	}
	return false
}
