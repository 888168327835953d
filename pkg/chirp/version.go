package chirp

// Version is the semantic version of the ChirpLink SDK.
const Version = "1.2.0"
