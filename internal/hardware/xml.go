package hardware

import (
	"encoding/xml"
	"fmt"
)

// cacheConfigXML mirrors the byte-exact <cache-config> tree of
// spec.md §6: ordered <icache>/<dcache> children, each with an
// optional nested next-level child.
type cacheConfigXML struct {
	XMLName xml.Name  `xml:"cache-config"`
	ICache  *cacheXML `xml:"icache"`
	DCache  *cacheXML `xml:"dcache"`
}

type cacheXML struct {
	Sets        int       `xml:"sets,attr"`
	Ways        int       `xml:"ways,attr"`
	BlockSize   int       `xml:"block-size,attr"`
	Policy      string    `xml:"policy,attr"`
	WritePolicy string    `xml:"write-policy,attr"`
	Next        *cacheXML `xml:"next-level"`
}

func (c *cacheXML) toCache(name string) (*Cache, error) {
	if c == nil {
		return nil, nil
	}
	policy, err := ParseReplacementPolicy(c.Policy)
	if err != nil {
		return nil, err
	}
	write := WriteThrough
	if c.WritePolicy != "" {
		write, err = ParseWritePolicy(c.WritePolicy)
		if err != nil {
			return nil, err
		}
	}
	if c.Sets <= 0 || c.Ways <= 0 || c.BlockSize <= 0 {
		return nil, fmt.Errorf("hardware: %s cache needs positive sets/ways/block-size", name)
	}
	if c.BlockSize&(c.BlockSize-1) != 0 {
		return nil, fmt.Errorf("hardware: %s cache block-size %d is not a power of two", name, c.BlockSize)
	}
	next, err := c.Next.toCache(name + "-next")
	if err != nil {
		return nil, err
	}
	return &Cache{
		Name:        name,
		Sets:        c.Sets,
		Ways:        c.Ways,
		BlockSize:   c.BlockSize,
		Replacement: policy,
		Write:       write,
		Next:        next,
	}, nil
}

// ParseCacheConfig parses the <cache-config> XML document of spec.md
// §6 into icache/dcache Cache descriptors.
func ParseCacheConfig(data []byte) (icache, dcache *Cache, err error) {
	var doc cacheConfigXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("hardware: malformed cache-config: %w", err)
	}
	icache, err = doc.ICache.toCache("icache")
	if err != nil {
		return nil, nil, err
	}
	dcache, err = doc.DCache.toCache("dcache")
	if err != nil {
		return nil, nil, err
	}
	return icache, dcache, nil
}
