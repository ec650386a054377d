package rangeserve

// Version is the library version reported in the client User-Agent.
const Version = "0.1.0"
