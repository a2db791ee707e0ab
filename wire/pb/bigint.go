package wirepb

import "math/big"

// BigIntToProto get proto BigInt from golang big.Int
func BigIntToProto(x *big.Int) *BigInt {
	if x == nil {
		return nil
	}
	pb := new(BigInt)
	pb.RawAbs = x.Bytes()
	return pb
}

// ProtoToBigInt get golang big.Int from proto BigInt
func ProtoToBigInt(pb *BigInt) *big.Int {
	if pb == nil {
		return nil
	}
	return new(big.Int).SetBytes(pb.RawAbs)
}
