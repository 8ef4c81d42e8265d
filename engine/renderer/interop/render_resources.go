package interop

// Render resources are the root constants of one draw or dispatch: plain
// descriptor indices into the bindless heap.

// PBRShadingRenderResources starts with the mesh id, which every indirect
// record overwrites.
type PBRShadingRenderResources struct {
	MeshID                     uint32
	PositionBufferSrvIndex     uint32
	TextureCoordBufferSrvIndex uint32
	NormalBufferSrvIndex       uint32
	MeshBufferSrvIndex         uint32
	GameObjectBufferSrvIndex   uint32
	MaterialBufferSrvIndex     uint32
	SceneBufferCbvIndex        uint32
	LightBufferCbvIndex        uint32
	AtmosphereTextureSrvIndex  uint32
}

type AtmosphereRenderResources struct {
	AtmosphereBufferCbvIndex uint32
	OutputTextureUavIndex    uint32
	SceneBufferCbvIndex      uint32
	LightBufferCbvIndex      uint32
}

type CubeMapRenderResources struct {
	TextureSrvIndex        uint32
	PositionBufferSrvIndex uint32
	SceneBufferCbvIndex    uint32
}

type LightRenderResources struct {
	SceneBufferCbvIndex             uint32
	LightBufferCbvIndex             uint32
	LightCubePositionBufferSrvIndex uint32
}

type PostProcessRenderResources struct {
	RenderTextureSrvIndex     uint32
	PostProcessBufferCbvIndex uint32
}

// OverlayRenderResources draws one batch of text quads.
type OverlayRenderResources struct {
	GlyphBufferSrvIndex  uint32
	AtlasTextureSrvIndex uint32
	ScreenWidth          float32
	ScreenHeight         float32
}

// Glyph is one textured screen space quad of the overlay, in pixels.
type Glyph struct {
	Position [2]float32
	Size     [2]float32
	UVOffset [2]float32
	UVSize   [2]float32
}
