package types

// explorerPrefixes maps a chain id to the block explorer URL that takes a
// token or contract id as its last path segment.
var explorerPrefixes = map[string]string{
	"arb":    "https://arbiscan.io/address/",
	"astar":  "https://astar.subscan.io/account/",
	"aurora": "https://explorer.aurora.dev/address/",
	"avax":   "https://snowtrace.io/address/",
	"base":   "https://basescan.org/address/",
	"boba":   "https://bobascan.com/",
	"brise":  "https://brisescan.com/",
	"bsc":    "https://bscscan.com/",
	"btt":    "https://bttcscan.com/",
	"canto":  "https://www.mintscan.io/canto/",
	"celo":   "https://explorer.celo.org/mainnet/",
	"cfx":    "https://www.confluxscan.io/",
	"ckb":    "https://v1.gwscan.com/",
	"core":   "https://scan.coredao.org/",
	"cro":    "https://cronoscan.com/",
	"doge":   "https://explorer.dogechain.dog/",
	"eos":    "https://bloks.io/key/",
	"era":    "https://explorer.zksync.io/address/",
	"etc":    "https://etcblockexplorer.com/search?q=",
	"eth":    "https://etherscan.io/address/",
	"evmos":  "https://www.mintscan.io/evmos/address/",
	"flr":    "https://flare-explorer.flare.network/address/",
	"fsn":    "https://fsnscan.com/address/",
	"ftm":    "https://ftmscan.com/address/",
	"fuse":   "https://explorer.fuse.io/address/",
	"heco":   "https://www.hecoinfo.com/en-us/address/",
	"hmy":    "https://explorer.harmony.one/address/",
	"iotx":   "https://iotexscan.io/address/",
	"kava":   "https://kavascan.com/address/",
	"klay":   "https://scope.klaytn.com/account/",
	"linea":  "https://lineascan.build/address/",
	"loot":   "https://explorer.lootchain.com/address/",
	"manta":  "https://pacific-explorer.manta.network/address/",
	"matic":  "https://polygonscan.com/address/",
	"mnt":    "https://explorer.mantle.xyz/address/",
	"mobm":   "https://moonscan.io/address/",
	"movr":   "https://moonriver.moonscan.io/address/",
	"mtr":    "https://scan.meter.io/address/",
	"nova":   "https://nova-explorer.arbitrum.io/address/",
	"oas":    "https://explorer.oasys.games/address/",
	"okt":    "https://www.oklink.com/oktc/address/",
	"op":     "https://optimistic.etherscan.io/address/",
	"opbnb":  "https://opbnbscan.com/address/",
	"palm":   "https://explorer.palm.io/address/",
	"pze":    "https://zkevm.polygonscan.com/address/",
	"rsk":    "https://explorer.rsk.co/address/",
	"xdai":   "https://gnosisscan.io/address/",
}

// ExplorerURL returns the block explorer page of a token, or nil when the
// chain has no known explorer.
func ExplorerURL(chain *string, tokenID string) *string {
	if chain == nil || tokenID == "" {
		return nil
	}
	prefix, ok := explorerPrefixes[*chain]
	if !ok {
		return nil
	}
	url := prefix + tokenID
	return &url
}
