// Package atlas packs many small RGBA textures into a single texture atlas.
//
// Textures are first uploaded to a TextureStore, then handed to a Builder
// together with their handles. Because the packer sorts textures to fill the
// atlas better, the position of a texture in the resulting Atlas must be
// looked up with TextureIndex rather than assumed from insertion order.
package atlas
