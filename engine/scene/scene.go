// Package scene holds everything the renderer draws: the camera, the lights
// and the game objects, flattened into scene wide GPU buffers that shaders
// index by mesh id.
package scene

import (
	"errors"
	"fmt"
	"slices"

	"github.com/spaghettifunk/aurora/engine/assets"
	"github.com/spaghettifunk/aurora/engine/assets/loaders"
	"github.com/spaghettifunk/aurora/engine/core"
	"github.com/spaghettifunk/aurora/engine/math"
	"github.com/spaghettifunk/aurora/engine/renderer/interop"
	"github.com/spaghettifunk/aurora/engine/renderer/renderpass"
	"github.com/spaghettifunk/aurora/engine/renderer/rhi"
)

const MaxGameObjects = 100

var ErrTooManyGameObjects = errors.New("scene is full")

// Resources is the part of the renderer the scene allocates GPU memory
// through.
type Resources interface {
	CreateBuffer(desc rhi.BufferCreationDesc, data []byte) (uint32, error)
	ReplaceBuffer(index uint32, desc rhi.BufferCreationDesc, data []byte) error
	CreateTexture(desc rhi.TextureCreationDesc, data []byte) (uint32, error)
	BufferAt(index uint32) *rhi.Buffer
	TextureAt(index uint32) *rhi.Texture
	FrameSlot() uint32
}

// geometry is the CPU copy of every scene wide array.
type geometry struct {
	name        string
	gameObjects []*GameObject
	positions   []math.Vec3
	normals     []math.Vec3
	texCoords   []math.Vec2
	indices     []uint16
	meshes      []interop.MeshBuffer
	materials   []interop.MaterialBuffer
}

// clone copies the arrays so appending to the copy leaves g untouched.
func (g geometry) clone() geometry {
	return geometry{
		name:        g.name,
		gameObjects: slices.Clone(g.gameObjects),
		positions:   slices.Clone(g.positions),
		normals:     slices.Clone(g.normals),
		texCoords:   slices.Clone(g.texCoords),
		indices:     slices.Clone(g.indices),
		meshes:      slices.Clone(g.meshes),
		materials:   slices.Clone(g.materials),
	}
}

type Scene struct {
	Camera *Camera
	Lights *Lights

	res    Resources
	loader assets.ModelLoader
	path   string

	data           geometry
	materialsDirty bool

	sceneData         interop.SceneBuffer
	sceneBuffer       renderpass.PerFrameBuffer
	gameObjectData    []interop.GameObjectBuffer
	gameObjectBuffers renderpass.PerFrameBuffer
	buffers           renderpass.Geometry
}

// New creates the scene buffers and loads the description at path. An
// empty path gives a scene with only the camera and the sun.
func New(res Resources, loader assets.ModelLoader, path string) (*Scene, error) {
	lights, err := NewLights(res)
	if err != nil {
		return nil, err
	}
	s := &Scene{
		Camera:         NewCamera(),
		Lights:         lights,
		res:            res,
		loader:         loader,
		path:           path,
		gameObjectData: make([]interop.GameObjectBuffer, MaxGameObjects),
		buffers:        renderpass.EmptyGeometry(),
	}

	if s.sceneBuffer, err = renderpass.NewPerFrameBuffer(res, rhi.NewBufferDesc[interop.SceneBuffer](rhi.BufferUsageConstantBuffer, "scene buffer", 1), nil); err != nil {
		return nil, err
	}
	if s.gameObjectBuffers, err = renderpass.NewPerFrameBuffer(res,
		rhi.NewBufferDesc[interop.GameObjectBuffer](rhi.BufferUsageDynamicStructuredBuffer, "game object buffer", MaxGameObjects),
		rhi.Bytes(s.gameObjectData)); err != nil {
		return nil, err
	}

	if path == "" {
		core.LogInfo("Created empty scene")
		return s, nil
	}
	desc, err := LoadDescription(path)
	if err != nil {
		return nil, err
	}
	s.Camera.Apply(desc.Camera)
	if err := s.load(desc); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scene) Name() string {
	return s.data.name
}

func (s *Scene) Path() string {
	return s.path
}

func (s *Scene) GameObjects() []*GameObject {
	return s.data.gameObjects
}

// GameObject looks up a game object by name.
func (s *Scene) GameObject(name string) (*GameObject, bool) {
	for _, g := range s.data.gameObjects {
		if g.Name == name {
			return g, true
		}
	}
	return nil, false
}

func (s *Scene) MeshCount() int {
	return len(s.data.meshes)
}

// AddGameObject loads desc.Model and appends it to the scene. The geometry
// buffers are rebuilt, so this must run between frames.
func (s *Scene) AddGameObject(desc GameObjectDescription) (*GameObject, error) {
	if len(s.data.gameObjects) >= MaxGameObjects {
		return nil, fmt.Errorf("%w: %d game objects", ErrTooManyGameObjects, MaxGameObjects)
	}
	data := s.data.clone()
	obj, err := s.createGameObject(&data, desc)
	if err != nil {
		return nil, err
	}
	if err := s.commit(data); err != nil {
		return nil, err
	}
	return obj, nil
}

// Reload reparses the description and rebuilds the scene. A missing path or
// a broken description keeps the current scene. The camera is left where
// it is.
func (s *Scene) Reload() error {
	if s.path == "" {
		core.LogWarn("Cannot reload scene: it was not loaded from a description")
		return nil
	}
	desc, err := LoadDescription(s.path)
	if err != nil {
		core.LogWarn("Keeping current scene: %v", err)
		return nil
	}
	if err := s.load(desc); err != nil {
		var loadErr *loadError
		if errors.As(err, &loadErr) {
			core.LogWarn("Keeping current scene: %v", err)
			return nil
		}
		return err
	}
	core.LogInfo("Reloaded scene %s", s.data.name)
	return nil
}

// loadError is a description that parsed but could not be turned into a
// scene, a missing model for instance.
type loadError struct {
	err error
}

func (e *loadError) Error() string { return e.err.Error() }
func (e *loadError) Unwrap() error { return e.err }

func (s *Scene) load(desc *Description) error {
	data := geometry{name: desc.Name}
	if p, ok := s.loader.(assets.Preloader); ok {
		sources := make([]string, 0, len(desc.GameObjects))
		for _, g := range desc.GameObjects {
			sources = append(sources, g.Model)
		}
		if err := p.Preload(sources); err != nil {
			core.LogWarn("Failed to preload models of %s: %v", desc.Name, err)
		}
	}
	for _, g := range desc.GameObjects {
		if _, err := s.createGameObject(&data, g); err != nil {
			return &loadError{err: err}
		}
	}

	// built aside so a failed upload leaves the current lights alone
	lights := &Lights{buffer: s.Lights.buffer}
	lights.Reset()
	if desc.SunAngle != nil {
		lights.SetSunAngle(*desc.SunAngle)
	}
	for _, l := range desc.Lights {
		lightType, _ := parseLightType(l.Type)
		if lightType == interop.LightTypeDirectional {
			// the sun always exists, a description only tunes it
			lights.SetSun(l.Color.Vec3(), l.Intensity)
			continue
		}
		lights.AddLight(interop.Light{
			Type:                          lightType,
			WorldSpacePositionOrDirection: l.Position.Vec3(),
			Color:                         l.Color.Vec3(),
			Intensity:                     l.Intensity,
			Scale:                         l.Scale,
		})
	}

	if err := s.commit(data); err != nil {
		return err
	}
	s.Lights.data = lights.data
	core.LogInfo("Loaded scene %s: %d game objects, %d meshes, %d materials, %d lights",
		data.name, len(data.gameObjects), len(data.meshes), len(data.materials), s.Lights.Count())
	return nil
}

// createGameObject loads the model of desc and appends its meshes and
// materials to data. Mesh ids are global indices into data.meshes.
func (s *Scene) createGameObject(data *geometry, desc GameObjectDescription) (*GameObject, error) {
	model, err := s.loader.LoadModel(desc.Model)
	if err != nil {
		return nil, fmt.Errorf("game object %s: %w", desc.Name, err)
	}
	var albedo loaders.ImageData
	if desc.AlbedoTexture != "" {
		if albedo, err = s.loader.LoadImage(desc.AlbedoTexture); err != nil {
			core.LogWarn("Game object %s: failed to load albedo texture: %v", desc.Name, err)
		}
	}

	obj := newGameObject(uint32(len(data.gameObjects)), desc)
	obj.MeshCount = uint32(len(model.Meshes))
	obj.MaterialCount = uint32(len(model.Materials))
	obj.MeshBufferOffset = uint32(len(data.meshes))
	obj.MaterialBufferOffset = uint32(len(data.materials))

	data.gameObjects = append(data.gameObjects, obj)

	for _, mesh := range model.Meshes {
		data.meshes = append(data.meshes, interop.MeshBuffer{
			MeshIndex:          uint32(len(data.meshes)),
			GameObjectIndex:    obj.Index,
			PositionOffset:     uint32(len(data.positions)),
			NormalOffset:       uint32(len(data.normals)),
			TextureCoordOffset: uint32(len(data.texCoords)),
			IndicesOffset:      uint32(len(data.indices)),
			IndicesCount:       uint32(len(mesh.Indices)),
			MaterialIndex:      obj.MaterialBufferOffset + mesh.MaterialIndex,
		})
		data.positions = append(data.positions, mesh.Positions...)
		data.normals = append(data.normals, mesh.Normals...)
		data.texCoords = append(data.texCoords, mesh.TexCoords...)
		data.indices = append(data.indices, mesh.Indices...)
	}

	for i, m := range model.Materials {
		material := interop.MaterialBuffer{
			BaseColor:               m.BaseColor,
			MetallicRoughnessFactor: m.MetallicRoughness,
			AlbedoTextureSrvIndex:   rhi.InvalidIndex,
		}
		if desc.BaseColor != nil {
			material.BaseColor = desc.BaseColor.Vec4()
		}
		if desc.Metallic != nil {
			material.MetallicRoughnessFactor.X = *desc.Metallic
		}
		if desc.Roughness != nil {
			material.MetallicRoughnessFactor.Y = *desc.Roughness
		}

		texture := m.BaseColorTexture
		if albedo.Valid() {
			texture = albedo
		}
		if texture.Valid() {
			index, err := s.res.CreateTexture(rhi.TextureCreationDesc{
				Usage:            rhi.TextureUsageShaderResource,
				Format:           rhi.FormatR8G8B8A8UnormSrgb,
				BytesPerPixel:    4,
				Width:            texture.Width,
				Height:           texture.Height,
				DepthOrArraySize: 1,
				MipLevels:        1,
				Name:             fmt.Sprintf("%s albedo texture material %d", obj.Name, i),
			}, texture.Pixels)
			if err != nil {
				return nil, err
			}
			material.AlbedoTextureSrvIndex = s.res.TextureAt(index).SrvIndex
		}
		data.materials = append(data.materials, material)
	}

	core.LogDebug("Created game object %s (%s) with %d meshes and %d materials", obj.Name, obj.ID, obj.MeshCount, obj.MaterialCount)
	return obj, nil
}

type bufferUpload struct {
	index *uint32
	desc  rhi.BufferCreationDesc
	data  []byte
}

// uploads lists the scene wide arrays of g next to the buffer index in b
// each one lives in.
func (g geometry) uploads(b *renderpass.Geometry) []bufferUpload {
	return []bufferUpload{
		{&b.PositionBuffer, rhi.NewBufferDesc[math.Vec3](rhi.BufferUsageStructuredBuffer, "scene position buffer", uint32(len(g.positions))), rhi.Bytes(g.positions)},
		{&b.NormalBuffer, rhi.NewBufferDesc[math.Vec3](rhi.BufferUsageStructuredBuffer, "scene normal buffer", uint32(len(g.normals))), rhi.Bytes(g.normals)},
		{&b.TextureCoordBuffer, rhi.NewBufferDesc[math.Vec2](rhi.BufferUsageStructuredBuffer, "scene texture coord buffer", uint32(len(g.texCoords))), rhi.Bytes(g.texCoords)},
		{&b.IndexBuffer, rhi.NewBufferDesc[uint16](rhi.BufferUsageIndexBuffer, "scene index buffer", uint32(len(g.indices))), rhi.Bytes(g.indices)},
		{&b.MeshBuffer, rhi.NewBufferDesc[interop.MeshBuffer](rhi.BufferUsageStructuredBuffer, "scene mesh buffer", uint32(len(g.meshes))), rhi.Bytes(g.meshes)},
		{&b.MaterialBuffer, rhi.NewBufferDesc[interop.MaterialBuffer](rhi.BufferUsageDynamicStructuredBuffer, "scene material buffer", uint32(len(g.materials))), rhi.Bytes(g.materials)},
	}
}

// commit uploads the geometry buffers and makes data the current scene.
// Empty arrays keep the previous buffer: nothing indexes it without meshes.
// The first failed upload stops the commit; buffers already replaced get
// the current contents back and the scene keeps its current data.
func (s *Scene) commit(data geometry) error {
	next := s.buffers
	uploads := data.uploads(&next)
	for i, u := range uploads {
		if len(u.data) == 0 {
			continue
		}
		if *u.index == rhi.InvalidIndex {
			created, err := s.res.CreateBuffer(u.desc, u.data)
			if err != nil {
				s.rollback(uploads[:i])
				return fmt.Errorf("scene buffers: %w", err)
			}
			*u.index = created
			continue
		}
		if err := s.res.ReplaceBuffer(*u.index, u.desc, u.data); err != nil {
			s.rollback(uploads[:i])
			return fmt.Errorf("scene buffers: %w", err)
		}
	}

	s.data = data
	s.materialsDirty = true
	next.Meshes = data.meshes
	s.buffers = next
	return nil
}

// rollback undoes the uploads a failed commit already made. Created buffers
// are kept for the next commit, nothing indexes them meanwhile.
func (s *Scene) rollback(done []bufferUpload) {
	current := s.data.uploads(&s.buffers)
	for i, u := range done {
		if len(u.data) == 0 {
			continue
		}
		prev := current[i]
		if *prev.index == rhi.InvalidIndex {
			*prev.index = *u.index
			continue
		}
		if len(prev.data) == 0 {
			continue
		}
		if err := s.res.ReplaceBuffer(*prev.index, prev.desc, prev.data); err != nil {
			core.LogError("Failed to restore %s: %v", prev.desc.Name, err)
		}
	}
}

// Update advances the camera by deltaTime milliseconds and uploads the
// lights, the camera matrices, the game object transforms and the materials.
func (s *Scene) Update(projection math.Mat4, deltaTime float32, frameCount uint32, input *core.Input) error {
	s.Camera.Update(deltaTime, input)
	view := s.Camera.View()

	if err := s.Lights.Update(view); err != nil {
		return fmt.Errorf("light buffer: %w", err)
	}

	viewProjection := view.Mul(projection)
	s.sceneData = interop.SceneBuffer{
		ViewProjectionMatrix:        viewProjection,
		InverseProjectionMatrix:     projection.Inverse(),
		InverseViewProjectionMatrix: viewProjection.Inverse(),
		ViewMatrix:                  view,
		InverseViewMatrix:           view.Inverse(),
		CameraPosition:              s.Camera.Position,
		FrameCount:                  frameCount,
	}
	if err := s.sceneBuffer.Update(rhi.BytesOf(&s.sceneData)); err != nil {
		return fmt.Errorf("scene buffer: %w", err)
	}

	for _, g := range s.data.gameObjects {
		s.gameObjectData[g.Index] = interop.GameObjectBuffer{Transform: g.TransformBuffer()}
	}
	if err := s.gameObjectBuffers.Update(rhi.Bytes(s.gameObjectData)); err != nil {
		return fmt.Errorf("game object buffer: %w", err)
	}

	// materials only change through SetMaterial and commit
	if s.materialsDirty && len(s.data.materials) > 0 {
		if err := s.res.BufferAt(s.buffers.MaterialBuffer).Update(rhi.Bytes(s.data.materials)); err != nil {
			return fmt.Errorf("material buffer: %w", err)
		}
	}
	s.materialsDirty = false
	return nil
}

// SetMaterial changes a material in place; the next Update uploads it.
func (s *Scene) SetMaterial(index uint32, material interop.MaterialBuffer) error {
	if int(index) >= len(s.data.materials) {
		return fmt.Errorf("material %d of %d: %w", index, len(s.data.materials), rhi.ErrInvalidIndex)
	}
	s.data.materials[index] = material
	s.materialsDirty = true
	return nil
}

func (s *Scene) Material(index uint32) interop.MaterialBuffer {
	return s.data.materials[index]
}

// SceneBufferIndex is the scene constant buffer of the current frame slot.
func (s *Scene) SceneBufferIndex() uint32 {
	return s.sceneBuffer.Index()
}

func (s *Scene) LightBufferIndex() uint32 {
	return s.Lights.BufferIndex()
}

func (s *Scene) LightCount() uint32 {
	return s.Lights.Count()
}

func (s *Scene) SunDirection() math.Vec3 {
	return s.Lights.SunDirection()
}

func (s *Scene) Geometry() renderpass.Geometry {
	g := s.buffers
	g.GameObjectBuffer = s.gameObjectBuffers.Index()
	return g
}
