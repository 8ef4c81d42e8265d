package assets

import "github.com/spaghettifunk/aurora/engine/assets/loaders"

// ModelLoader turns a model source, a file path or a "primitive:" name, into
// CPU side mesh data. Relative paths resolve against the asset root.
type ModelLoader interface {
	LoadModel(source string) (*loaders.ModelData, error)
	LoadImage(path string) (loaders.ImageData, error)
}

// Preloader decodes models ahead of the LoadModel calls that want them.
type Preloader interface {
	Preload(sources []string) error
}
