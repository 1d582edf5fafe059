package hardware

import (
	"testing"

	"github.com/statinf-otawa/otawa-core/internal/address"
	"github.com/stretchr/testify/assert"
)

func TestCacheSetTagBlock(t *testing.T) {
	c := &Cache{Sets: 4, Ways: 2, BlockSize: 16, Replacement: LRU}

	a := address.Address(0x1004)
	assert.Equal(t, address.Address(0x1000), c.Block(a))
	set := c.Set(a)
	assert.True(t, set >= 0 && set < 4)

	// Addresses one cache-size apart share set and block offset but differ in tag.
	b := address.Address(0x1004 + 4*16)
	assert.Equal(t, c.Set(a), c.Set(b))
	assert.NotEqual(t, c.Tag(a), c.Tag(b))
}

func TestBlockIDDeduplicatesByTagAndSet(t *testing.T) {
	c := &Cache{Sets: 4, Ways: 2, BlockSize: 16}
	id1 := c.BlockIDOf(0x1000)
	id2 := c.BlockIDOf(0x1004) // same block
	assert.Equal(t, id1, id2)

	id3 := c.BlockIDOf(0x1010) // next block
	assert.NotEqual(t, id1, id3)
}

func TestParseCacheConfig(t *testing.T) {
	doc := []byte(`<cache-config>
		<icache sets="64" ways="4" block-size="32" policy="LRU" write-policy="write-through"/>
		<dcache sets="64" ways="2" block-size="32" policy="FIFO" write-policy="write-back"/>
	</cache-config>`)

	icache, dcache, err := ParseCacheConfig(doc)
	assert.NoError(t, err)
	assert.Equal(t, 64, icache.Sets)
	assert.Equal(t, 4, icache.Ways)
	assert.Equal(t, LRU, icache.Replacement)
	assert.Equal(t, WriteThrough, icache.Write)

	assert.Equal(t, FIFO, dcache.Replacement)
	assert.Equal(t, WriteBack, dcache.Write)
}

func TestParseCacheConfigRejectsNonPowerOfTwoBlock(t *testing.T) {
	doc := []byte(`<cache-config><icache sets="4" ways="2" block-size="24" policy="LRU"/></cache-config>`)
	_, _, err := ParseCacheConfig(doc)
	assert.Error(t, err)
}

func TestParseCacheConfigNestedNextLevel(t *testing.T) {
	doc := []byte(`<cache-config>
		<icache sets="8" ways="2" block-size="16" policy="LRU" write-policy="write-through">
			<next-level sets="32" ways="8" block-size="64" policy="LRU" write-policy="write-back"/>
		</icache>
	</cache-config>`)
	icache, _, err := ParseCacheConfig(doc)
	assert.NoError(t, err)
	assert.NotNil(t, icache.Next)
	assert.Equal(t, 32, icache.Next.Sets)
}
