package assets

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/aurora/engine/assets/loaders"
	"github.com/spaghettifunk/aurora/engine/core"
)

var ErrClosed = errors.New("asset manager already closed")

type AssetType uint8

const (
	AssetTypeNone AssetType = iota
	AssetTypeShader
	AssetTypeScene
	AssetTypeModel
	AssetTypeImage
	AssetTypeFont
)

func (t AssetType) String() string {
	switch t {
	case AssetTypeShader:
		return "shader"
	case AssetTypeScene:
		return "scene"
	case AssetTypeModel:
		return "model"
	case AssetTypeImage:
		return "image"
	case AssetTypeFont:
		return "font"
	}
	return "none"
}

const maxLoadWorkers = 4

type AssetInfo struct {
	Path         string
	Type         AssetType
	LastModified time.Time
}

// Handler is called on the goroutine that calls Drain with the absolute path
// of a changed file.
type Handler func(path string)

type Options struct {
	// Debounce is how long a file has to stay quiet before its change is
	// delivered. Editors often write a file several times per save.
	Debounce time.Duration
}

// AssetManager indexes the asset directory, loads models and watches the
// tree for changes. Changes are collected on the watcher goroutine and only
// handed to handlers by Drain, so handlers may touch renderer state.
type AssetManager struct {
	root     string
	debounce time.Duration
	models   loaders.ModelLoader
	jobs     *JobSystem

	mutex     sync.Mutex
	preloaded map[string]*loaders.ModelData
	assets    map[string]AssetInfo
	pending   map[string]time.Time
	handlers  map[AssetType][]Handler
	isClosed  bool

	fsnotify *fsnotify.Watcher
	done     chan struct{}
	wg       sync.WaitGroup
}

var _ ModelLoader = (*AssetManager)(nil)

func NewAssetManager(root string, opts Options) (*AssetManager, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	am := &AssetManager{
		root:      abs,
		debounce:  opts.Debounce,
		models:    loaders.ModelLoader{Root: abs},
		preloaded: make(map[string]*loaders.ModelData),
		assets:    make(map[string]AssetInfo),
		pending:   make(map[string]time.Time),
		handlers:  make(map[AssetType][]Handler),
		done:      make(chan struct{}),
	}
	if am.jobs, err = NewJobSystem(min(runtime.NumCPU(), maxLoadWorkers), maxLoadWorkers); err != nil {
		return nil, err
	}
	if err := filepath.Walk(abs, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			am.index(path, fi.ModTime())
		}
		return nil
	}); err != nil {
		return nil, err
	}
	core.LogInfo("Indexed %d assets under %s", len(am.assets), abs)
	return am, nil
}

func (am *AssetManager) Root() string {
	return am.root
}

// Path resolves a path relative to the asset root.
func (am *AssetManager) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(am.root, rel)
}

// LoadModel decodes source, or hands out the result of an earlier Preload.
// A preloaded model is handed out once.
func (am *AssetManager) LoadModel(source string) (*loaders.ModelData, error) {
	am.mutex.Lock()
	model, ok := am.preloaded[source]
	delete(am.preloaded, source)
	am.mutex.Unlock()
	if ok {
		return model, nil
	}
	return am.models.Load(source)
}

// Preload decodes sources on the load workers and waits for them. Models
// that fail are left for LoadModel to report.
func (am *AssetManager) Preload(sources []string) error {
	am.mutex.Lock()
	closed := am.isClosed
	// leftovers of a load that failed part way may be stale by now
	clear(am.preloaded)
	am.mutex.Unlock()
	if closed {
		return ErrClosed
	}

	var wg sync.WaitGroup
	seen := make(map[string]bool, len(sources))
	for _, source := range sources {
		if seen[source] {
			continue
		}
		seen[source] = true

		var model *loaders.ModelData
		wg.Add(1)
		err := am.jobs.Submit(JobTask{
			Name: source,
			Run: func() (err error) {
				model, err = am.models.Load(source)
				return err
			},
			OnComplete: func() {
				am.mutex.Lock()
				am.preloaded[source] = model
				am.mutex.Unlock()
				wg.Done()
			},
			OnFailure: func(error) { wg.Done() },
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}
	wg.Wait()
	return nil
}

func (am *AssetManager) LoadImage(path string) (loaders.ImageData, error) {
	return loaders.LoadImage(am.Path(path))
}

// Assets lists every indexed asset of type t, sorted by path.
func (am *AssetManager) Assets(t AssetType) []AssetInfo {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	var out []AssetInfo
	for _, a := range am.assets {
		if a.Type == t {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// OnChange registers a handler for changes to assets of type t.
func (am *AssetManager) OnChange(t AssetType, h Handler) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.handlers[t] = append(am.handlers[t], h)
}

// Watch starts watching the asset tree. It is a no-op when already watching.
func (am *AssetManager) Watch() error {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.isClosed {
		return ErrClosed
	}
	if am.fsnotify != nil {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	am.fsnotify = w
	if err := am.watchRecursive(am.root); err != nil {
		w.Close()
		am.fsnotify = nil
		return err
	}
	am.wg.Add(1)
	go am.start(w)
	core.LogInfo("Watching %s for changes", am.root)
	return nil
}

// Notify records a change of path as if the watcher had seen it.
func (am *AssetManager) Notify(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	if am.index(path, time.Now()) == AssetTypeNone {
		return
	}
	am.pending[path] = time.Now()
}

// Drain delivers every change that has been quiet for the debounce period
// and returns how many were delivered.
func (am *AssetManager) Drain() int {
	now := time.Now()
	type delivery struct {
		path     string
		handlers []Handler
	}
	var ready []delivery

	am.mutex.Lock()
	for path, at := range am.pending {
		if now.Sub(at) < am.debounce {
			continue
		}
		delete(am.pending, path)
		t := am.assets[path].Type
		ready = append(ready, delivery{path: path, handlers: am.handlers[t]})
	}
	am.mutex.Unlock()

	sort.Slice(ready, func(i, j int) bool { return ready[i].path < ready[j].path })
	for _, d := range ready {
		core.LogDebug("Asset changed: %s", d.path)
		for _, h := range d.handlers {
			h(d.path)
		}
	}
	return len(ready)
}

func (am *AssetManager) Close() error {
	am.mutex.Lock()
	if am.isClosed {
		am.mutex.Unlock()
		return nil
	}
	am.isClosed = true
	w := am.fsnotify
	am.mutex.Unlock()

	close(am.done)
	am.wg.Wait()
	if err := am.jobs.Shutdown(); err != nil {
		return err
	}
	if w != nil {
		return w.Close()
	}
	return nil
}

func (am *AssetManager) start(w *fsnotify.Watcher) {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-w.Events:
			if !ok {
				return
			}
			s, err := os.Stat(e.Name)
			if err == nil && s.IsDir() {
				if e.Has(fsnotify.Create) {
					am.mutex.Lock()
					if err := am.watchRecursive(e.Name); err != nil {
						core.LogWarn("Failed to watch %s: %v", e.Name, err)
					}
					am.mutex.Unlock()
				}
				continue
			}
			if e.Has(fsnotify.Create) || e.Has(fsnotify.Write) || e.Has(fsnotify.Rename) {
				if err == nil {
					am.Notify(e.Name)
				}
			}
			if e.Has(fsnotify.Remove) {
				am.removeAsset(e.Name)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			core.LogError("Asset watcher: %v", err)

		case <-am.done:
			return
		}
	}
}

// watchRecursive adds every directory under path to the watch list. Files
// created between the walk and the watch are picked up by the next write.
// Callers hold the mutex.
func (am *AssetManager) watchRecursive(path string) error {
	return filepath.Walk(path, func(walkPath string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return am.fsnotify.Add(walkPath)
		}
		am.index(walkPath, fi.ModTime())
		return nil
	})
}

// index records path and returns its type. Callers hold the mutex, except
// during construction.
func (am *AssetManager) index(path string, modified time.Time) AssetType {
	assetType := DetermineAssetType(path)
	if assetType == AssetTypeNone {
		return assetType
	}
	am.assets[path] = AssetInfo{
		Path:         path,
		Type:         assetType,
		LastModified: modified,
	}
	return assetType
}

func (am *AssetManager) removeAsset(path string) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	delete(am.assets, path)
	delete(am.pending, path)
}

func DetermineAssetType(path string) AssetType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hlsl", ".hlsli":
		return AssetTypeShader
	case ".toml", ".yaml", ".yml":
		return AssetTypeScene
	case ".obj", ".mtl":
		return AssetTypeModel
	case ".png", ".jpg", ".jpeg", ".bmp", ".tga", ".tiff", ".webp":
		return AssetTypeImage
	case ".fnt":
		return AssetTypeFont
	default:
		return AssetTypeNone
	}
}
