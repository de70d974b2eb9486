package constants

const SpeedOfLight float64 = 299.792458 // [mm / ns] in vacuum

const DefaultWeightThreshold float64 = 1e-4 // Russian roulette
const DefaultChanceFactor float64 = 10.     // survive with 1/ChanceFactor
const DefaultMaxCollisions int64 = 100000
const DefaultMaxPathLength float64 = 0 // [mm], 0 disables the limit

const BoundaryEpsilon float64 = 1e-10 // [mm]
const Quantile95 = 1.96
