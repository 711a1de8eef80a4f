package core

// Version is the client library version, sent in the User-Agent header.
const Version = "0.4.0"
