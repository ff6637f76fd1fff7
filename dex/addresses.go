package dex

// Ethereum mainnet deployments
const (
	MainnetWETH            = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	MainnetUniswapV2Router = "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"
	MainnetSushiswapRouter = "0xd9e1cE17f2641f24aE83637ab66a2cca9C378B9F"
	MainnetUniswapV3Quoter = "0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6"
	MainnetUniswapV3Router = "0xE592427A0AEce92De3Edee1F18E0157C05861564"
)
